package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"breastscan/internal/model"
	"breastscan/internal/repository"
)

const predictionColumns = `id, uploaded_image_path, output_image_path, class_detected, score, created_at`

// PredictionRepository implements repository.PredictionRepository for SQLite.
type PredictionRepository struct {
	db *DB
}

// NewPredictionRepository creates a new SQLite prediction repository.
func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(row rowScanner) (*model.Prediction, error) {
	var p model.Prediction
	if err := row.Scan(&p.ID, &p.UploadedImagePath, &p.OutputImagePath, &p.ClassDetected, &p.Score, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Record inserts one prediction and returns it with the id and timestamp
// assigned by the database.
func (r *PredictionRepository) Record(uploadedPath, outputPath, classDetected string, score float64) (*model.Prediction, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO image_predictions (uploaded_image_path, output_image_path, class_detected, score)
		VALUES (?, ?, ?, ?)
	`, uploadedPath, outputPath, classDetected, score)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to insert prediction: %v", repository.ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read prediction id: %v", repository.ErrStorage, err)
	}

	prediction, err := scanPrediction(r.db.Conn().QueryRow(
		`SELECT `+predictionColumns+` FROM image_predictions WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read back prediction %d: %v", repository.ErrStorage, id, err)
	}
	return prediction, nil
}

// GetByID retrieves a prediction by its ID. A missing row yields nil, nil.
func (r *PredictionRepository) GetByID(id int64) (*model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	prediction, err := scanPrediction(r.db.Conn().QueryRow(
		`SELECT `+predictionColumns+` FROM image_predictions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get prediction: %v", repository.ErrStorage, err)
	}
	return prediction, nil
}

func buildWhere(filter *model.PredictionFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}

	if filter != nil && filter.Class != "" {
		where += " AND class_detected = ?"
		args = append(args, filter.Class)
	}
	return where, args
}

// GetAll retrieves predictions, newest first, based on filter criteria.
func (r *PredictionRepository) GetAll(filter *model.PredictionFilter) ([]model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT ` + predictionColumns + ` FROM image_predictions` + where + ` ORDER BY id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query predictions: %v", repository.ErrStorage, err)
	}
	defer rows.Close()

	var predictions []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan prediction: %v", repository.ErrStorage, err)
		}
		predictions = append(predictions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStorage, err)
	}

	return predictions, nil
}

// GetTotalCount returns the number of predictions matching the filter.
func (r *PredictionRepository) GetTotalCount(filter *model.PredictionFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM image_predictions`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count predictions: %v", repository.ErrStorage, err)
	}
	return count, nil
}

// GetStats returns prediction counts and mean scores per detected class.
func (r *PredictionRepository) GetStats() (*model.PredictionStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT class_detected, COUNT(*), AVG(score)
		FROM image_predictions
		GROUP BY class_detected
		ORDER BY class_detected
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query stats: %v", repository.ErrStorage, err)
	}
	defer rows.Close()

	stats := &model.PredictionStats{PerClass: []model.ClassStats{}}
	for rows.Next() {
		var cs model.ClassStats
		if err := rows.Scan(&cs.Class, &cs.Count, &cs.MeanScore); err != nil {
			return nil, fmt.Errorf("%w: failed to scan stats: %v", repository.ErrStorage, err)
		}
		stats.TotalPredictions += cs.Count
		stats.PerClass = append(stats.PerClass, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStorage, err)
	}

	return stats, nil
}

// ReferencedImagePaths returns every uploaded and output image path any
// prediction points at.
func (r *PredictionRepository) ReferencedImagePaths() (map[string]bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT uploaded_image_path, output_image_path FROM image_predictions`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query image paths: %v", repository.ErrStorage, err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var uploaded, output string
		if err := rows.Scan(&uploaded, &output); err != nil {
			return nil, fmt.Errorf("%w: failed to scan image paths: %v", repository.ErrStorage, err)
		}
		paths[filepath.Clean(uploaded)] = true
		paths[filepath.Clean(output)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStorage, err)
	}
	return paths, nil
}

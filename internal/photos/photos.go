// Package photos stores up to four ordered photos per record: image files in
// a per-record directory under the photo root, plus user_photos rows.
//
// ReplaceAll writes the new files first, then swaps the rows in one
// transaction. Files of the replaced batch stay on disk, unreferenced; Orphans
// lists them and CollectOrphans deletes them when asked to.
package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/rollbook/internal/model"
	"github.com/roach88/rollbook/internal/persist"
	"github.com/roach88/rollbook/internal/records"
)

// defaultExt is used when the original filename has no recognised image
// extension.
const defaultExt = ".jpg"

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".heic": true,
}

// Store manages photo files and their metadata rows.
type Store struct {
	db   *persist.DB
	root string
	log  *zap.Logger
}

// NewStore creates a photo store keeping files under root. A relative root
// is resolved against the working directory once, here, so every stored
// photo_path is absolute.
func NewStore(db *persist.DB, root string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Store{db: db, root: root, log: logger}
}

// Root returns the photo root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory holding recordID's photos.
func (s *Store) Dir(recordID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(recordID, 10))
}

// ReplaceAll makes uploads the complete photo set of recordID. Upload i is
// stored in slot i+1; nil entries leave their slot empty. Previous rows are
// removed, previous files are not.
func (s *Store) ReplaceAll(ctx context.Context, recordID int64, uploads []*model.Upload) ([]model.Photo, error) {
	const op = "photos.replace"

	if len(uploads) > model.MaxPhotos {
		return nil, model.NewValidationError(op, fmt.Sprintf("at most %d photos per record, got %d", model.MaxPhotos, len(uploads)))
	}
	for i, u := range uploads {
		if u != nil && len(u.Data) == 0 {
			return nil, model.NewValidationError(op, fmt.Sprintf("photo %d is empty", i+1))
		}
	}

	dir := s.Dir(recordID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, model.NewPersistenceError(op, fmt.Errorf("create photo directory: %w", err))
	}

	stored, err := s.writeFiles(dir, recordID, uploads)
	if err != nil {
		removeFiles(stored)
		return nil, model.NewPersistenceError(op, err)
	}

	err = s.db.Mutate(ctx, op, func(tx *sql.Tx) error {
		ok, err := records.Exists(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if !ok {
			return model.NewNotFoundError(op, fmt.Sprintf("record %d not found", recordID))
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM user_photos WHERE user_id = ?", recordID); err != nil {
			return fmt.Errorf("delete previous photos: %w", err)
		}

		for i := range stored {
			p := &stored[i]
			res, err := tx.ExecContext(ctx, `
				INSERT INTO user_photos (user_id, photo_path, photo_order, original_filename, created_at)
				VALUES (?, ?, ?, ?, ?)
			`, p.RecordID, p.Path, p.Order, p.OriginalFilename, p.CreatedAt.Format(model.TimeLayout))
			if err != nil {
				return fmt.Errorf("insert photo %d: %w", p.Order, err)
			}
			if p.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		// After a commit the rows reference the new files; keep them.
		if !errors.Is(err, persist.ErrFlush) {
			removeFiles(stored)
			_ = os.Remove(dir) // only succeeds when empty
		}
		return nil, err
	}

	s.log.Info("photos replaced", zap.Int64("record_id", recordID), zap.Int("count", len(stored)))
	return stored, nil
}

func (s *Store) writeFiles(dir string, recordID int64, uploads []*model.Upload) ([]model.Photo, error) {
	stored := make([]model.Photo, 0, len(uploads))
	for i, u := range uploads {
		if u == nil {
			continue
		}
		slot := i + 1
		now := s.db.Now()
		name := fmt.Sprintf("photo_%d_%d_%s%s", slot, now.UnixMilli(), uuid.NewString()[:8], extension(u.Name))
		path := filepath.Join(dir, name)

		if err := os.WriteFile(path, u.Data, 0o644); err != nil {
			return stored, fmt.Errorf("write photo %d: %w", slot, err)
		}
		stored = append(stored, model.Photo{
			RecordID:         recordID,
			Path:             path,
			Order:            slot,
			OriginalFilename: norm.NFC.String(u.Name),
			CreatedAt:        now.Truncate(time.Second),
		})
	}
	return stored, nil
}

// ListForRecord returns recordID's photos in slot order.
func (s *Store) ListForRecord(ctx context.Context, recordID int64) ([]model.Photo, error) {
	const op = "photos.list"

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, photo_path, photo_order, original_filename, created_at
		FROM user_photos
		WHERE user_id = ?
		ORDER BY photo_order ASC, id ASC
	`, recordID)
	if err != nil {
		return nil, model.NewPersistenceError(op, fmt.Errorf("query photos: %w", err))
	}
	defer rows.Close()

	photos := []model.Photo{}
	for rows.Next() {
		var (
			p         model.Photo
			userID    sql.NullInt64
			filename  sql.NullString
			createdAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &userID, &p.Path, &p.Order, &filename, &createdAt); err != nil {
			return nil, model.NewPersistenceError(op, fmt.Errorf("scan photo: %w", err))
		}
		p.RecordID = userID.Int64
		p.OriginalFilename = filename.String
		p.CreatedAt = createdAt.Time
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewPersistenceError(op, fmt.Errorf("iterate photos: %w", err))
	}
	return photos, nil
}

// Orphans returns the files under the photo root that no user_photos row
// references, in lexical walk order.
func (s *Store) Orphans(ctx context.Context) ([]string, error) {
	const op = "photos.orphans"

	referenced, err := s.referenced(ctx)
	if err != nil {
		return nil, model.NewPersistenceError(op, err)
	}

	orphans := []string{}
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if !referenced[abs] {
			orphans = append(orphans, path)
		}
		return nil
	})
	if err != nil {
		return nil, model.NewPersistenceError(op, fmt.Errorf("walk %s: %w", s.root, err))
	}
	return orphans, nil
}

// CollectOrphans deletes every file Orphans reports and returns them.
func (s *Store) CollectOrphans(ctx context.Context) ([]string, error) {
	orphans, err := s.Orphans(ctx)
	if err != nil {
		return nil, err
	}

	removed := make([]string, 0, len(orphans))
	for _, path := range orphans {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, model.NewPersistenceError("photos.collect", err)
		}
		removed = append(removed, path)
	}
	if len(removed) > 0 {
		s.log.Info("orphaned photos removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

// referenced returns the absolute paths of all stored photo files.
func (s *Store) referenced(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.Query(ctx, "SELECT photo_path FROM user_photos")
	if err != nil {
		return nil, fmt.Errorf("query photo paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan photo path: %w", err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		paths[abs] = true
	}
	return paths, rows.Err()
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if imageExts[ext] {
		return ext
	}
	return defaultExt
}

func removeFiles(photos []model.Photo) {
	for _, p := range photos {
		_ = os.Remove(p.Path)
	}
}

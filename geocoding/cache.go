package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
)

// Store бэкенд хранения кэша геокодирования. Кэш — явный объект с
// инжектируемым хранилищем и явным циклом load/save, а не амбиентное
// состояние модуля.
type Store interface {
	Load() (map[string]Point, error)
	Save(points map[string]Point) error
}

// MemoryStore хранилище в памяти (для тестов и одноразовых прогонов)
type MemoryStore struct {
	mu     sync.Mutex
	points map[string]Point
}

// NewMemoryStore создает пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]Point)}
}

// Load возвращает копию сохраненных точек
func (s *MemoryStore) Load() (map[string]Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := make(map[string]Point, len(s.points))
	for name, point := range s.points {
		points[name] = point
	}
	return points, nil
}

// Save замещает сохраненные точки
func (s *MemoryStore) Save(points map[string]Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = make(map[string]Point, len(points))
	for name, point := range points {
		s.points[name] = point
	}
	return nil
}

// FileStore хранилище в JSON-файле
type FileStore struct {
	path string
}

// NewFileStore создает файловое хранилище по указанному пути
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load читает точки из файла; отсутствие файла дает пустой кэш
func (s *FileStore) Load() (map[string]Point, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Point), nil
	}
	if err != nil {
		return nil, err
	}

	points := make(map[string]Point)
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// Save записывает точки в файл
func (s *FileStore) Save(points map[string]Point) error {
	data, err := json.MarshalIndent(points, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// CachedGeocoder связывает провайдера с кэшем и реализует
// resolution.Geocoder. Неудачные ответы кэшируются на время жизни
// объекта, чтобы не долбить провайдера одними и теми же названиями;
// в хранилище уходят только успешные.
type CachedGeocoder struct {
	provider Provider
	store    Store
	logger   *slog.Logger

	mu     sync.Mutex
	points map[string]Point
	misses map[string]bool
	dirty  bool
}

// NewCachedGeocoder создает кэширующий геокодер, загружая кэш из хранилища
func NewCachedGeocoder(provider Provider, store Store, logger *slog.Logger) (*CachedGeocoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	points, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &CachedGeocoder{
		provider: provider,
		store:    store,
		logger:   logger,
		points:   points,
		misses:   make(map[string]bool),
	}, nil
}

// Geocode возвращает координаты названия. Любой сбой провайдера дает
// ok=false и запись в журнал, не ошибку: геокодирование — необязательное
// усиление, оно не должно ронять вызывающего.
func (g *CachedGeocoder) Geocode(ctx context.Context, name string) (lat, lon float64, ok bool) {
	g.mu.Lock()
	if point, cached := g.points[name]; cached {
		g.mu.Unlock()
		return point.Lat, point.Lon, true
	}
	if g.misses[name] {
		g.mu.Unlock()
		return 0, 0, false
	}
	g.mu.Unlock()

	if ctx.Err() != nil {
		return 0, 0, false
	}

	point, found, err := g.provider.Geocode(name)
	if err != nil {
		g.logger.Debug("геокодирование не удалось", "name", name, "error", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil || !found {
		g.misses[name] = true
		return 0, 0, false
	}
	g.points[name] = point
	g.dirty = true
	return point.Lat, point.Lon, true
}

// Flush сохраняет накопленные точки в хранилище
func (g *CachedGeocoder) Flush() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.dirty {
		return nil
	}
	if err := g.store.Save(g.points); err != nil {
		return err
	}
	g.dirty = false
	return nil
}

package versions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/pkg/models"
)

const (
	versionsDirName     = ".versions"
	sidecarExt          = ".meta"
	defaultHistoryLimit = 20
	tagTimeLayout       = "20060102_150405"
)

// versionTagPattern matches v<YYYYMMDD_HHMMSS> with an optional collision
// suffix appended when two commits land in the same second.
var versionTagPattern = regexp.MustCompile(`^v\d{8}_\d{6}(?:_(\d+))?$`)

// Config holds settings for the filesystem version store.
type Config struct {
	// BaseDir is the data root; artifacts live in per-project directories under it.
	BaseDir string

	// HistoryLimit caps History listings when the caller passes no limit.
	HistoryLimit int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseDir:      "./data/documents",
		HistoryLimit: defaultHistoryLimit,
	}
}

// sidecarRecord is the JSON shape persisted next to each revision copy.
type sidecarRecord struct {
	Hash     string    `json:"hash"`
	Date     time.Time `json:"date"`
	Message  string    `json:"message"`
	Filename string    `json:"filename"`
}

// Service is the filesystem-backed revision store. Each revision of an
// artifact is a plain content copy plus a JSON sidecar under a .versions
// directory next to the artifact; revisions are append-only and never
// rewritten. Commits against one artifact path are serialised by a keyed
// mutex, commits against different paths may interleave.
type Service struct {
	config Config
	logger arbor.ILogger
	now    func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var _ interfaces.VersionService = (*Service)(nil)

// NewService creates a version store rooted at the configured data directory.
func NewService(config Config, logger arbor.ILogger) (*Service, error) {
	if config.BaseDir == "" {
		config.BaseDir = DefaultConfig().BaseDir
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = defaultHistoryLimit
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create version store root: %w", err)
	}

	return &Service{
		config: config,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Commit writes content to the artifact path and records a revision copy
// with its sidecar under <parent>/.versions/. The returned tag is
// v<YYYYMMDD_HHMMSS> in UTC; later commits within the same second carry
// _1, _2... suffixes. Callers must use the returned tag, never a tag they
// computed themselves.
func (s *Service) Commit(path string, content []byte, message string) (*models.VersionInfo, error) {
	full, key, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	lock := s.pathLock(key)
	lock.Lock()
	defer lock.Unlock()

	versionsDir := filepath.Join(filepath.Dir(full), versionsDirName)
	if err := os.MkdirAll(versionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create versions directory: %w", err)
	}

	base := filepath.Base(full)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	now := s.now().UTC()
	tag := "v" + now.Format(tagTimeLayout)
	for n := 1; ; n++ {
		_, err := os.Stat(filepath.Join(versionsDir, base+"_"+tag+sidecarExt))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to probe version tag: %w", err)
		}
		tag = fmt.Sprintf("v%s_%d", now.Format(tagTimeLayout), n)
	}

	if err := os.WriteFile(full, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write artifact: %w", err)
	}

	revisionName := stem + "_" + tag + ext
	if err := os.WriteFile(filepath.Join(versionsDir, revisionName), content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write revision copy: %w", err)
	}

	hash := sha256.Sum256(content)
	info := models.VersionInfo{
		Version:  tag,
		Hash:     hex.EncodeToString(hash[:]),
		Date:     now,
		Message:  message,
		Filename: revisionName,
	}

	sidecar, err := json.MarshalIndent(sidecarRecord{
		Hash:     info.Hash,
		Date:     info.Date,
		Message:  info.Message,
		Filename: info.Filename,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := os.WriteFile(filepath.Join(versionsDir, base+"_"+tag+sidecarExt), sidecar, 0644); err != nil {
		return nil, fmt.Errorf("failed to write sidecar: %w", err)
	}

	s.logger.Debug().
		Str("path", key).
		Str("version", tag).
		Int("bytes", len(content)).
		Msg("Artifact revision committed")

	return &info, nil
}

// ReadAt returns the content of one revision. Unknown and malformed version
// tags both yield ErrVersionNotFound.
func (s *Service) ReadAt(path string, version string) ([]byte, error) {
	full, _, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if !versionTagPattern.MatchString(version) {
		return nil, fmt.Errorf("%w: %s@%s", interfaces.ErrVersionNotFound, path, version)
	}

	base := filepath.Base(full)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	content, err := os.ReadFile(filepath.Join(filepath.Dir(full), versionsDirName, stem+"_"+version+ext))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s@%s", interfaces.ErrVersionNotFound, path, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read revision: %w", err)
	}
	return content, nil
}

// History lists revisions newest first. A non-positive limit falls back to
// the configured default; an artifact with no revisions lists empty.
func (s *Service) History(path string, limit int) ([]models.VersionInfo, error) {
	full, _, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}

	infos, err := s.listRevisions(full)
	if err != nil {
		return nil, err
	}
	if len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// Prune removes the oldest revisions of an artifact beyond keep and returns
// how many were removed. Keep zero clears the whole history; the artifact
// file itself is never touched.
func (s *Service) Prune(path string, keep int) (int, error) {
	full, key, err := s.resolve(path)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}

	lock := s.pathLock(key)
	lock.Lock()
	defer lock.Unlock()

	infos, err := s.listRevisions(full)
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}

	base := filepath.Base(full)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	versionsDir := filepath.Join(filepath.Dir(full), versionsDirName)

	removed := 0
	for _, info := range infos[keep:] {
		revisionName := info.Filename
		if revisionName == "" {
			revisionName = stem + "_" + info.Version + ext
		}

		failed := false
		for _, name := range []string{revisionName, base + "_" + info.Version + sidecarExt} {
			if err := os.Remove(filepath.Join(versionsDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn().Err(err).Str("file", name).Msg("Failed to remove pruned revision file")
				failed = true
			}
		}
		if !failed {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug().
			Str("path", key).
			Int("removed", removed).
			Int("kept", keep).
			Msg("Artifact history pruned")
	}
	return removed, nil
}

// ListArtifacts enumerates the artifacts stored for one project with their
// latest revision metadata. Hidden entries and the .versions directory are
// skipped; a missing project directory lists empty.
func (s *Service) ListArtifacts(projectID string) ([]models.DocumentRecord, error) {
	dir, _, err := s.resolve(projectID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list project directory: %w", err)
	}

	var records []models.DocumentRecord
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		infos, err := s.listRevisions(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		record := models.DocumentRecord{
			Path:      entry.Name(),
			ProjectID: projectID,
			Revisions: len(infos),
		}
		if len(infos) > 0 {
			record.Latest = infos[0]
		}
		records = append(records, record)
	}
	return records, nil
}

// listRevisions enumerates every sidecar of one artifact, newest first.
// Sidecar names carry the full artifact filename, extension included, so
// sibling artifacts sharing a stem (karta.md vs karta.html) keep separate
// histories.
func (s *Service) listRevisions(full string) ([]models.VersionInfo, error) {
	base := filepath.Base(full)
	versionsDir := filepath.Join(filepath.Dir(full), versionsDirName)

	entries, err := os.ReadDir(versionsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list versions directory: %w", err)
	}

	seen := make(map[string]bool)
	var infos []models.VersionInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, base+"_") || !strings.HasSuffix(name, sidecarExt) {
			continue
		}
		tag := strings.TrimSuffix(strings.TrimPrefix(name, base+"_"), sidecarExt)
		if !versionTagPattern.MatchString(tag) || seen[tag] {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(versionsDir, name))
		if err != nil {
			s.logger.Warn().Err(err).Str("sidecar", name).Msg("Failed to read version sidecar")
			continue
		}
		var record sidecarRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			s.logger.Warn().Err(err).Str("sidecar", name).Msg("Failed to decode version sidecar")
			continue
		}

		seen[tag] = true
		infos = append(infos, models.VersionInfo{
			Version:  tag,
			Hash:     record.Hash,
			Date:     record.Date,
			Message:  record.Message,
			Filename: record.Filename,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Date.Equal(infos[j].Date) {
			return infos[i].Date.After(infos[j].Date)
		}
		return collisionOrdinal(infos[i].Version) > collisionOrdinal(infos[j].Version)
	})
	return infos, nil
}

// resolve maps an artifact path onto the store root and rejects paths that
// would escape it. The second return is the cleaned path used as the mutex key.
func (s *Service) resolve(path string) (string, string, error) {
	clean := filepath.Clean(strings.TrimSpace(path))
	if clean == "" || clean == "." {
		return "", "", fmt.Errorf("artifact path is empty")
	}
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("artifact path escapes the store root: %s", path)
	}
	return filepath.Join(s.config.BaseDir, clean), clean, nil
}

// pathLock returns the mutex serialising writes to one artifact path.
func (s *Service) pathLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// collisionOrdinal extracts the _N suffix of a tag; the unsuffixed tag of a
// second counts as zero, so equal-date revisions sort by commit order.
func collisionOrdinal(tag string) int {
	m := versionTagPattern.FindStringSubmatch(tag)
	if m == nil || m[1] == "" {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "herald/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.sent.json      (whole-document rewrite)
//   - <prefix>.scheduled.json (whole-document rewrite)
//   - <prefix>.refs.json      (whole-document rewrite)
//   - <prefix>.failed.jsonl   (append-only JSON Lines)
//
// Every rewrite goes through a temp file plus rename so a crash mid-write
// leaves the previous document intact.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	sentPath      string
	scheduledPath string
	refsPath      string

	failedFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	ff, err := os.OpenFile(prefix+".failed.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:           log,
		sentPath:      prefix + ".sent.json",
		scheduledPath: prefix + ".scheduled.json",
		refsPath:      prefix + ".refs.json",
		failedFile:    ff,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failedFile != nil {
		err := s.failedFile.Close()
		s.failedFile = nil
		return err
	}
	return nil
}

func (s *fileStore) LoadSent(ctx context.Context) (SentDoc, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := loadEventDoc(s.sentPath, s.log)
	if err != nil {
		return NewSentDoc(), err
	}
	return SentDoc{Version: sentDocVersion, Events: events}, nil
}

func (s *fileStore) SaveSent(ctx context.Context, doc SentDoc) error {
	_ = ctx
	if doc.Events == nil {
		doc.Events = map[string]map[string][]int64{}
	}
	doc.Version = sentDocVersion
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.sentPath, doc)
}

func (s *fileStore) LoadScheduled(ctx context.Context) (ScheduledDoc, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := loadEventDoc(s.scheduledPath, s.log)
	if err != nil {
		return NewScheduledDoc(), err
	}
	return ScheduledDoc{Version: sentDocVersion, Events: events}, nil
}

func (s *fileStore) SaveScheduled(ctx context.Context, doc ScheduledDoc) error {
	_ = ctx
	if doc.Events == nil {
		doc.Events = map[string]map[string][]int64{}
	}
	doc.Version = sentDocVersion
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.scheduledPath, doc)
}

func (s *fileStore) LoadRefs(ctx context.Context) (RefDoc, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := NewRefDoc()
	b, err := os.ReadFile(s.refsPath)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		s.log.Warn("refs document unreadable, starting empty",
			logx.String("path", s.refsPath), logx.Err(err))
		return NewRefDoc(), nil
	}
	if doc.Refs == nil {
		doc.Refs = map[string]Ref{}
	}
	return doc, nil
}

func (s *fileStore) SaveRefs(ctx context.Context, doc RefDoc) error {
	_ = ctx
	if doc.Refs == nil {
		doc.Refs = map[string]Ref{}
	}
	doc.Version = sentDocVersion
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.refsPath, doc)
}

func (s *fileStore) AppendFailure(ctx context.Context, r FailureRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failedFile == nil {
		return errors.New("failure log closed")
	}
	return json.NewEncoder(s.failedFile).Encode(r)
}

// loadEventDoc reads a sent/scheduled document, upgrading older shapes.
//
// Shapes seen in the wild:
//
//	v2 (current): {"version":2,"events":{"<event>":{"<recipient>":[86400]}}}
//	v1:           {"<event>":{"<recipient>":[86400]}}
//	v0:           {"<event>":["24h","1h"]}
//
// v0 carried no recipient attribution, so its window lists cannot be
// mapped to anyone; the event survives with an empty recipient map and
// deliveries resolve fresh.
func loadEventDoc(path string, log logx.Logger) (map[string]map[string][]int64, error) {
	empty := map[string]map[string][]int64{}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return empty, err
	}

	var versioned struct {
		Version int                           `json:"version"`
		Events  map[string]map[string][]int64 `json:"events"`
	}
	if err := json.Unmarshal(b, &versioned); err == nil && versioned.Version >= 2 {
		if versioned.Events == nil {
			versioned.Events = empty
		}
		return versioned.Events, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		log.Warn("state document unreadable, starting empty",
			logx.String("path", path), logx.Err(err))
		return empty, nil
	}

	out := map[string]map[string][]int64{}
	for eventID, payload := range raw {
		var recips map[string][]int64
		if err := json.Unmarshal(payload, &recips); err == nil {
			out[eventID] = recips
			continue
		}
		var windows []string
		if err := json.Unmarshal(payload, &windows); err == nil {
			out[eventID] = map[string][]int64{}
			continue
		}
		log.Warn("dropping unrecognized state entry",
			logx.String("path", path), logx.String("event", eventID))
	}
	return out, nil
}

func writeJSONAtomic(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

package conversation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dimanchick22/alicebot/internal/fsstore"
)

// File persists one JSON document per chat under dir. Writes are atomic
// (temp file + rename) so a crash never leaves a half-written history.
type File struct {
	dir    string
	limits Limits

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewFile(dir string, limits Limits) (*File, error) {
	if err := fsstore.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &File{
		dir:    dir,
		limits: limits.normalized(),
		locks:  make(map[int64]*sync.Mutex),
	}, nil
}

func (f *File) path(chatID int64) string {
	return filepath.Join(f.dir, strconv.FormatInt(chatID, 10)+".json")
}

func (f *File) lock(chatID int64) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.locks[chatID]
	if l == nil {
		l = &sync.Mutex{}
		f.locks[chatID] = l
	}
	return l
}

func (f *File) read(chatID int64) (storedConversation, bool, error) {
	var doc storedConversation
	found, err := fsstore.ReadJSON(f.path(chatID), &doc)
	if err != nil {
		return storedConversation{}, false, err
	}
	return doc, found, nil
}

func (f *File) Get(_ context.Context, chatID int64) ([]Turn, error) {
	l := f.lock(chatID)
	l.Lock()
	defer l.Unlock()

	doc, found, err := f.read(chatID)
	if err != nil || !found {
		return nil, err
	}
	return doc.Turns, nil
}

func (f *File) Append(_ context.Context, chatID int64, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	turns = withTimestamps(turns)

	l := f.lock(chatID)
	l.Lock()
	defer l.Unlock()

	doc, found, err := f.read(chatID)
	if err != nil {
		return err
	}
	if !found {
		if err := f.evict(); err != nil {
			return err
		}
		doc = storedConversation{ChatID: chatID}
	}
	doc.Turns = trimTurns(append(doc.Turns, turns...), f.limits.MaxTurns)
	doc.Updated = time.Now()
	return fsstore.WriteJSONAtomic(f.path(chatID), doc)
}

func (f *File) Clear(_ context.Context, chatID int64) error {
	l := f.lock(chatID)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(f.path(chatID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear conversation %d: %w", chatID, err)
	}
	return nil
}

func (f *File) Keys(_ context.Context) ([]int64, error) {
	ids, _, err := f.listFiles()
	return ids, err
}

func (f *File) Stats(ctx context.Context) (Stats, error) {
	ids, _, err := f.listFiles()
	if err != nil {
		return Stats{}, err
	}
	midnight := startOfToday(time.Now())
	st := Stats{Backend: "file", Conversations: len(ids)}
	for _, id := range ids {
		doc, found, err := f.read(id)
		if err != nil || !found {
			continue
		}
		st.Turns += len(doc.Turns)
		if !doc.Updated.Before(midnight) {
			st.ActiveToday++
		}
	}
	return st, nil
}

func (f *File) Close() error { return nil }

type fileAge struct {
	id    int64
	mtime time.Time
}

func (f *File) listFiles() ([]int64, []fileAge, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("list conversations: %w", err)
	}
	var ids []int64
	var ages []fileAge
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(e.Name(), ".json"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		if info, err := e.Info(); err == nil {
			ages = append(ages, fileAge{id: id, mtime: info.ModTime()})
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, ages, nil
}

// evict removes the oldest-updated documents once the cap is reached. The
// document mtime tracks Updated because every append rewrites the file.
func (f *File) evict() error {
	_, ages, err := f.listFiles()
	if err != nil {
		return err
	}
	if len(ages) < f.limits.MaxConversations {
		return nil
	}
	sort.Slice(ages, func(i, j int) bool { return ages[i].mtime.Before(ages[j].mtime) })
	target := f.limits.evictTarget()
	remaining := len(ages)
	for _, a := range ages {
		if remaining <= target {
			break
		}
		if err := os.Remove(f.path(a.id)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("evict conversation %d: %w", a.id, err)
		}
		remaining--
	}
	return nil
}

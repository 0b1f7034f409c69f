// Package batch validates trees of .sql files concurrently: a directory
// walker feeds paths to a worker pool, each worker reads and classifies one
// file at a time.
package batch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sqlguard/internal/model"
)

// FileWalker traverses directories and feeds matching files to a channel.
type FileWalker struct {
	Extensions map[string]struct{}
	Excludes   []string
}

func NewFileWalker(exts []string, excludes []string) *FileWalker {
	e := make(map[string]struct{})
	for _, ext := range exts {
		e[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &FileWalker{
		Extensions: e,
		Excludes:   excludes,
	}
}

// Walk starts the traversal and returns a channel of file paths.
// It runs in a separate goroutine and closes the channel when done.
func (fw *FileWalker) Walk(ctx context.Context, root string) (<-chan string, <-chan error) {
	paths := make(chan string, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errs)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if d.IsDir() {
				for _, exclude := range fw.Excludes {
					if strings.Contains(path, exclude) {
						return filepath.SkipDir
					}
				}
				if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
					return filepath.SkipDir
				}
				return nil
			}

			for _, exclude := range fw.Excludes {
				matched, _ := filepath.Match(exclude, d.Name())
				if matched || strings.Contains(path, exclude) {
					return nil
				}
			}

			ext := strings.ToLower(filepath.Ext(path))
			if len(ext) > 0 {
				ext = ext[1:]
			}
			if _, ok := fw.Extensions[ext]; ok {
				select {
				case paths <- path:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			return nil
		})

		if err != nil {
			errs <- err
		}
	}()

	return paths, errs
}

// Validator classifies one query string.
type Validator interface {
	Validate(sql string) model.ValidationResult
}

// FileResult is the outcome for a single file. Err is set when the file
// could not be read; Result is only meaningful when Err is nil.
type FileResult struct {
	File   string
	Result model.ValidationResult
	Err    error
}

// WorkerPool fans file paths out to concurrent validators.
type WorkerPool struct {
	Concurrency int
	Checker     Validator
}

func NewWorkerPool(concurrency int, checker Validator) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &WorkerPool{
		Concurrency: concurrency,
		Checker:     checker,
	}
}

func (wp *WorkerPool) Start(ctx context.Context, paths <-chan string) <-chan FileResult {
	results := make(chan FileResult)
	var wg sync.WaitGroup

	for i := 0; i < wp.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				select {
				case <-ctx.Done():
					return
				default:
				}

				var fr FileResult
				fr.File = path
				data, err := os.ReadFile(path)
				if err != nil {
					fr.Err = err
				} else {
					fr.Result = wp.Checker.Validate(string(data))
				}

				select {
				case results <- fr:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

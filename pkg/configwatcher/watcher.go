package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/YJLINa/peer-review-form/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader 设定档变化后被调用
type Reloader func()

// WatchFiles 监听设定档所在目录，目标文件被写入、创建或替换时防抖后调用 reload。
// 监听目录而非文件本身：文件可能尚未上传，编辑器保存时也常以替换方式写入。
func WatchFiles(ctx context.Context, paths []string, debounce time.Duration, reload Reloader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return err
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		// 目录可能尚未创建（设定档还没上传）
		if err := os.MkdirAll(dir, 0755); err != nil {
			watcher.Close()
			return err
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	go func() {
		defer watcher.Close()

		timer := time.NewTimer(debounce)
		if !timer.Stop() {
			<-timer.C
		}

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || !targets[name] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// 防抖处理
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			case <-timer.C:
				reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Log.Error("Roster watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

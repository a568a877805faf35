package enrich

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// PatternSource 从配置文件加载 user/tags 匹配模式列表。
type PatternSource func(path string) (userExprs, tagExprs []string, err error)

// PatternWatcher 监视配置文件并热更新切面匹配模式。
// 配置文件被写入或重建时重新加载模式列表，整体替换进 Enricher；
// 加载或编译失败时保留既有模式并记录警告，不中断监视。
type PatternWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchPatterns 启动对配置文件的模式热更新监视。
// 监视目录而非文件本身，以兼容编辑器的原子改名写入。
func WatchPatterns(path string, e *Enricher, source PatternSource, logger *logrus.Logger) (*PatternWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &PatternWatcher{
		watcher: watcher,
		done:    make(chan struct{}),
	}

	target := filepath.Clean(path)
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				userExprs, tagExprs, err := source(path)
				if err != nil {
					logger.WithError(err).WithField("path", path).Warn("Failed to reload match patterns")
					continue
				}
				if err := e.SetPatterns(userExprs, tagExprs); err != nil {
					logger.WithError(err).WithField("path", path).Warn("Rejected invalid match patterns")
					continue
				}
				logger.WithField("path", path).Info("Match patterns reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Pattern watcher error")
			}
		}
	}()

	return w, nil
}

// Close 停止监视并等待监视协程退出。
func (w *PatternWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

// Package watch 实现本地源文件监视。
// 启用后服务监视一个目录中的三个片段文件，任何写入都会
// 把三个文件的最新内容作为一次编辑推入调度器。去抖由
// 调度器负责，监视器只做原始转发。
package watch

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/lumenlab/lumen/internal/domain"
	"github.com/sirupsen/logrus"
)

// Editor 是接受编辑的下游，由更新调度器实现。
type Editor interface {
	Edit(set domain.SourceSet) error
}

// Config 指定被监视的目录与三个片段文件名。
type Config struct {
	Dir        string
	MarkupFile string
	StylesFile string
	ScriptFile string
}

// Watcher 监视片段文件并把变更转发给编辑接收方。
type Watcher struct {
	cfg    Config
	editor Editor
	logger *logrus.Logger
	fsw    *fsnotify.Watcher
}

// New 创建监视器并开始监视配置的目录。
func New(cfg Config, editor Editor, logger *logrus.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		cfg:    cfg,
		editor: editor,
		logger: logger,
		fsw:    fsw,
	}, nil
}

// Start 推送一次初始内容，然后在后台循环处理文件系统事件。
func (w *Watcher) Start() error {
	if err := w.push(); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Close 停止监视。
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.isFragment(event.Name) {
				continue
			}
			w.logger.WithField("file", filepath.Base(event.Name)).Debug("Fragment file changed")
			if err := w.push(); err != nil {
				w.logger.WithError(err).Warn("Failed to push edited fragments")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("File watcher error")
		}
	}
}

// isFragment 判断变更路径是否是三个片段文件之一。
func (w *Watcher) isFragment(path string) bool {
	switch filepath.Base(path) {
	case w.cfg.MarkupFile, w.cfg.StylesFile, w.cfg.ScriptFile:
		return true
	}
	return false
}

// push 读取三个片段文件的当前内容并作为一次编辑提交。
// 缺失的文件按空片段处理。
func (w *Watcher) push() error {
	return w.editor.Edit(domain.SourceSet{
		Markup: w.readFragment(w.cfg.MarkupFile),
		Styles: w.readFragment(w.cfg.StylesFile),
		Script: w.readFragment(w.cfg.ScriptFile),
	})
}

func (w *Watcher) readFragment(name string) string {
	data, err := os.ReadFile(filepath.Join(w.cfg.Dir, name))
	if err != nil {
		return ""
	}
	return string(data)
}

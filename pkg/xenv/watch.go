package xenv

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// 编辑器保存时会触发多次写事件, 合并后再重新加载
const watchDebounce = 100 * time.Millisecond

type OnReload func(ctx context.Context, cfg *Config)

// 监听配置文件变化, 加载成功后回调fn; 加载失败只记录日志, 保留旧配置
// 监听所在目录, 兼容rename替换文件的保存方式
func Watch(ctx context.Context, path string, fn OnReload) error {
	if path == "" {
		return errors.New("watch empty config path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "watch config %s", path)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "new fsnotify watcher")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "watch config dir %s", filepath.Dir(abs))
	}

	ctx = xlog.NewContext(ctx, zap.String("config", abs))
	go func() {
		defer xcommon.Recover(ctx)
		defer watcher.Close()

		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		reload := func() {
			cfg, err := Load(abs)
			if err != nil {
				xlog.Get(ctx).Warn("Config reload failed.", zap.Error(err))
				return
			}
			xlog.Get(ctx).Info("Config reload success.")
			fn(ctx, cfg)
		}
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, reload)
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				xlog.Get(ctx).Warn("Config watcher error.", zap.Error(err))
			}
		}
	}()
	return nil
}

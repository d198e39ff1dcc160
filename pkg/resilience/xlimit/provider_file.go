package xlimit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// defaultFileDebounce 文件变更的防抖时长。
// 编辑器保存时常产生一连串事件，合并为一次重载。
const defaultFileDebounce = 100 * time.Millisecond

// ruleDocument 规则文件的顶层结构
type ruleDocument struct {
	Rules []Rule `koanf:"rules" json:"rules"`
}

// FileProvider 基于本地文件的规则提供器。
//
// 支持 YAML/JSON，格式按扩展名识别。文件顶层结构:
//
//	rules:
//	  - id: search
//	    scope: user
//	    capacity: 100
//	    refill_per_minute: 600
//
// Watch 监视文件所在目录而非文件本身：编辑器原子写入时会先写
// 临时文件再 rename，直接监视文件会丢失事件。
type FileProvider struct {
	path     string
	debounce time.Duration
}

// FileProviderOption 配置文件提供器
type FileProviderOption func(*FileProvider)

// WithFileDebounce 设置变更防抖时长
func WithFileDebounce(d time.Duration) FileProviderOption {
	return func(p *FileProvider) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// NewFileProvider 创建文件规则提供器
func NewFileProvider(path string, opts ...FileProviderOption) (*FileProvider, error) {
	if path == "" {
		return nil, errors.New("xlimit: empty rule file path")
	}
	if _, err := parserFor(path); err != nil {
		return nil, err
	}

	p := &FileProvider{
		path:     path,
		debounce: defaultFileDebounce,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// parserFor 根据扩展名选择解析器
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return kyaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, fmt.Errorf("xlimit: unsupported rule file format: %s", path)
	}
}

// Load 实现 RuleProvider 接口
func (p *FileProvider) Load(_ context.Context) ([]Rule, error) {
	parser, err := parserFor(p.path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(p.path), parser); err != nil {
		return nil, fmt.Errorf("xlimit: load rule file %s: %w", p.path, err)
	}

	var doc ruleDocument
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("xlimit: parse rule file %s: %w", p.path, err)
	}
	return doc.Rules, nil
}

// Watch 实现 RuleProvider 接口
func (p *FileProvider) Watch(ctx context.Context, fn func(rules []Rule, err error)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xlimit: create file watcher: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		closeErr := watcher.Close()
		return nil, errors.Join(
			fmt.Errorf("xlimit: watch directory %s: %w", dir, err),
			closeErr,
		)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	filename := filepath.Base(p.path)

	var mu sync.Mutex
	var timer *time.Timer

	go func() {
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			_ = watcher.Close()
		}()

		for {
			select {
			case <-watchCtx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filename {
					continue
				}
				// Write 直接修改；Create/Rename 覆盖原子写入模式
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(p.debounce, func() {
					select {
					case <-watchCtx.Done():
						return
					default:
					}
					fn(p.Load(watchCtx))
				})
				mu.Unlock()

			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fn(nil, fmt.Errorf("xlimit: file watch error: %w", werr))
			}
		}
	}()

	return cancel, nil
}

var _ RuleProvider = (*FileProvider)(nil)

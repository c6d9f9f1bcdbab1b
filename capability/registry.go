package capability

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderKind 是提供者的接入方式。
type ProviderKind string

// KindHTTP 表示通过 HTTP 接入的提供者，当前唯一支持的方式。
const KindHTTP ProviderKind = "http"

// Provider 描述一个能力提供者的静态声明。
// 注册表加载后不再变更，生命周期与进程一致。
type Provider struct {
	Name        string       `yaml:"name" json:"name"`
	Kind        ProviderKind `yaml:"kind" json:"kind"`
	BaseURL     string       `yaml:"base_url" json:"base_url"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
}

// providersFile 是注册表 YAML 文件的顶层结构。
type providersFile struct {
	Providers []Provider `yaml:"providers"`
}

// Registry 是只读的提供者注册表。
// 构造完成后不再写入，可被无锁并发读取。
type Registry struct {
	providers []Provider
	byName    map[string]Provider
}

// NewRegistry 构造注册表并校验提供者声明。
// 名称或 base_url 为空、名称重复、kind 未知都是构造错误。
// kind 缺省为 http。
func NewRegistry(providers []Provider) (*Registry, error) {
	r := &Registry{
		providers: make([]Provider, 0, len(providers)),
		byName:    make(map[string]Provider, len(providers)),
	}

	for i, p := range providers {
		if p.Name == "" {
			return nil, fmt.Errorf("provider %d: name is required", i)
		}
		if p.BaseURL == "" {
			return nil, fmt.Errorf("provider %q: base_url is required", p.Name)
		}
		if p.Kind == "" {
			p.Kind = KindHTTP
		}
		if p.Kind != KindHTTP {
			return nil, fmt.Errorf("provider %q: unsupported kind %q", p.Name, p.Kind)
		}
		if _, exists := r.byName[p.Name]; exists {
			return nil, fmt.Errorf("provider %q: duplicate name", p.Name)
		}

		r.providers = append(r.providers, p)
		r.byName[p.Name] = p
	}

	return r, nil
}

// LoadProviders 从 YAML 文件加载提供者注册表。
// path 为空时返回空注册表，空注册表是合法状态。
func LoadProviders(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}

	return NewRegistry(file.Providers)
}

// List 按声明顺序返回全部提供者。
func (r *Registry) List() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Resolve 按名称查找提供者。
func (r *Registry) Resolve(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names 按声明顺序返回全部提供者名称。
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name
	}
	return names
}

// Len 返回注册的提供者数量。
func (r *Registry) Len() int {
	return len(r.providers)
}

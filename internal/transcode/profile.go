package transcode

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const defaultProfileKey = "mp3-320"

var globalRegistry = newRegistry()

func init() {
	MustRegister(Profile{
		Key:         defaultProfileKey,
		Description: "MP3 constant bitrate 320 kbps, stereo, 44.1 kHz",
		Codec:       "libmp3lame",
		BitrateKbps: 320,
		Channels:    2,
		SampleRate:  44100,
		Format:      "mp3",
		Extension:   ".mp3",
	})
}

// Profile describes one fixed encoder output configuration.
type Profile struct {
	Key         string
	Description string
	Codec       string
	BitrateKbps int
	Channels    int
	SampleRate  int
	Format      string
	Extension   string
}

type registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func newRegistry() *registry {
	return &registry{profiles: make(map[string]Profile)}
}

// Register 将输出 profile 加入全局注册表，重复键会返回错误。
func Register(profile Profile) error {
	return globalRegistry.register(profile)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(profile Profile) {
	if err := Register(profile); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的输出 profile。
func Resolve(key string) (Profile, bool) {
	return globalRegistry.resolve(key)
}

// Keys 返回所有已注册 profile 的键值，供调试或诊断使用。
func Keys() []string {
	return globalRegistry.keys()
}

// DefaultProfileKey 返回内置的默认输出 profile 键。
func DefaultProfileKey() string {
	return defaultProfileKey
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(profile Profile) error {
	key := r.normalizeKey(profile.Key)
	if key == "" {
		return fmt.Errorf("profile key is required")
	}
	profile.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[key]; exists {
		return fmt.Errorf("profile %s already registered", key)
	}
	r.profiles[key] = profile
	return nil
}

func (r *registry) resolve(key string) (Profile, bool) {
	if key == "" {
		return Profile{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[r.normalizeKey(key)]
	return profile, ok
}

func (r *registry) keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.profiles))
	for key := range r.profiles {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

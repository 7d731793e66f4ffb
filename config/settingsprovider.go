package config

type SettingsProvider[T any] interface {
	// GetSettings returns the current settings of type T.
	GetSettings() T
}

// StaticSettingsProvider always returns the same settings.
type StaticSettingsProvider[T any] struct {
	settings T
}

func NewStaticSettingsProvider[T any](settings T) *StaticSettingsProvider[T] {
	return &StaticSettingsProvider[T]{settings: settings}
}

func (p *StaticSettingsProvider[T]) GetSettings() T {
	return p.settings
}

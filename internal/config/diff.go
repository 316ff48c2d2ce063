package config

import "slices"

// ConfigDiff describes what changed between two configs.
//
// Log level, cursor and matcher settings are applied to a running service.
// Every other changed section is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	CursorChanged  bool
	MatcherChanged bool

	// RestartRequired names the changed sections that only take effect after
	// a restart, in schema order.
	RestartRequired []string
}

// HotReloadable reports whether any change can be applied without restart.
func (d ConfigDiff) HotReloadable() bool {
	return d.LogLevelChanged || d.CursorChanged || d.MatcherChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.CursorChanged = old.Cursor != new.Cursor
	d.MatcherChanged = old.Matcher != new.Matcher

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.ShutdownTimeout != new.Server.ShutdownTimeout {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Frequency != new.Frequency {
		d.RestartRequired = append(d.RestartRequired, "frequency")
	}
	if old.Catalog != new.Catalog {
		d.RestartRequired = append(d.RestartRequired, "catalog")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if old.Session != new.Session {
		d.RestartRequired = append(d.RestartRequired, "session")
	}
	if !eventsEqual(old.Events, new.Events) {
		d.RestartRequired = append(d.RestartRequired, "events")
	}
	return d
}

func eventsEqual(a, b EventsConfig) bool {
	return a.Enabled == b.Enabled &&
		a.Topic == b.Topic &&
		a.Principal == b.Principal &&
		slices.Equal(a.Brokers, b.Brokers)
}

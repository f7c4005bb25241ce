package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged      bool
	NewLogLevel          LogLevel
	TalkThresholdChanged bool
	NewTalkThreshold     float64
	PersonasChanged      bool          // true if any persona was added, removed, or modified
	PersonaChanges       []PersonaDiff // per-persona diffs
}

// PersonaDiff describes what changed for a single persona between two configs.
type PersonaDiff struct {
	ID                  string
	LabelChanged        bool
	VoiceChanged        bool
	InstructionsChanged bool
	Added               bool
	Removed             bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Audio.TalkThreshold != new.Audio.TalkThreshold {
		d.TalkThresholdChanged = true
		d.NewTalkThreshold = new.Audio.TalkThreshold
	}

	oldPersonas := make(map[string]*PersonaConfig, len(old.Personas))
	for i := range old.Personas {
		oldPersonas[old.Personas[i].ID] = &old.Personas[i]
	}
	newPersonas := make(map[string]*PersonaConfig, len(new.Personas))
	for i := range new.Personas {
		newPersonas[new.Personas[i].ID] = &new.Personas[i]
	}

	// Detect modified and removed personas.
	for id, oldP := range oldPersonas {
		newP, exists := newPersonas[id]
		if !exists {
			d.PersonaChanges = append(d.PersonaChanges, PersonaDiff{ID: id, Removed: true})
			d.PersonasChanged = true
			continue
		}
		pd := PersonaDiff{
			ID:                  id,
			LabelChanged:        oldP.Label != newP.Label,
			VoiceChanged:        oldP.Voice != newP.Voice,
			InstructionsChanged: oldP.Instructions != newP.Instructions,
		}
		if pd.LabelChanged || pd.VoiceChanged || pd.InstructionsChanged {
			d.PersonaChanges = append(d.PersonaChanges, pd)
			d.PersonasChanged = true
		}
	}

	// Detect added personas.
	for id := range newPersonas {
		if _, exists := oldPersonas[id]; !exists {
			d.PersonaChanges = append(d.PersonaChanges, PersonaDiff{ID: id, Added: true})
			d.PersonasChanged = true
		}
	}

	return d
}

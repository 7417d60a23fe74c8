package roster

import (
	"github.com/JonMunkholm/coursedesk/internal/config"
)

// Open builds the roster Source named by cfg: the seed file when set,
// otherwise the embedded seed, delayed by cfg.LoadDelay.
func Open(cfg config.RosterConfig) (Source, error) {
	students := Seed()
	if cfg.SeedFile != "" {
		var err error
		if students, err = LoadFile(cfg.SeedFile); err != nil {
			return nil, err
		}
	}

	var src Source = NewStatic(students)
	if cfg.LoadDelay > 0 {
		src = &Delayed{Source: src, Delay: cfg.LoadDelay}
	}
	return src, nil
}

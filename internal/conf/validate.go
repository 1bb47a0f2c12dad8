package conf

import (
	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic"
)

// ValidateSettings checks the cross-field constraints viper cannot express.
func ValidateSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return errors.Newf("only one output backend may be enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.Newf("no output backend enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	for _, pt := range settings.Processing.ProcessTypes {
		if !seismic.ProcessType(pt).Valid() {
			return errors.Newf("unknown process type %q", pt).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	r := settings.Processing.Response
	if r.PeriodMin <= 0 || r.PeriodMax <= r.PeriodMin || r.PeriodCount < 2 {
		return errors.Newf("invalid response period grid: min %g, max %g, count %d",
			r.PeriodMin, r.PeriodMax, r.PeriodCount).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	for _, d := range r.Dampings {
		if d <= 0 || d >= 1 {
			return errors.Newf("damping ratio must be in (0, 1): %g", d).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	if settings.Processing.MaxConcurrent < 1 {
		return errors.Newf("maxconcurrent must be at least 1, got %d", settings.Processing.MaxConcurrent).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if s := settings.Processing.Stability; s.Segments < 2 {
		return errors.Newf("stability analysis needs at least 2 segments, got %d", s.Segments).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

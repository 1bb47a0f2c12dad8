package conf

import "github.com/spf13/viper"

// setDefaultConfig sets the default values for each configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "gura-forge")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "gura-forge.log")

	viper.SetDefault("processing.processtypes", []string{"both"})
	viper.SetDefault("processing.maxconcurrent", 4)

	viper.SetDefault("processing.filters", []map[string]any{
		{
			"name":         "default-bandpass",
			"type":         "bandpass",
			"lowcutoff":    0.1,
			"highcutoff":   25.0,
			"order":        4,
			"tapertype":    "hann",
			"taperpercent": 5.0,
		},
	})

	viper.SetDefault("processing.response.periodmin", 0.02)
	viper.SetDefault("processing.response.periodmax", 10.0)
	viper.SetDefault("processing.response.periodcount", 100)
	viper.SetDefault("processing.response.dampings", []float64{0.02, 0.05, 0.10})

	viper.SetDefault("processing.spectral.window", "hann")
	viper.SetDefault("processing.spectral.nfft", 0)
	viper.SetDefault("processing.spectral.withresultant", true)

	viper.SetDefault("processing.coherence.window", "hann")
	viper.SetDefault("processing.coherence.segmentlength", 0)
	viper.SetDefault("processing.coherence.overlap", 0.5)

	viper.SetDefault("processing.stability.window", "hann")
	viper.SetDefault("processing.stability.segments", 4)
	viper.SetDefault("processing.stability.overlap", 0.0)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "gura-forge.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "guraforge")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "guraforge")
}

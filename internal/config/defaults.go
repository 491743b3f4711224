package config

// DefaultConfigPath is where the server looks for its config when none is given.
const DefaultConfigPath = "/usr/local/etc/marcador/config.yaml"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/marcador/data/db/marcador.db"
	}
	if cfg.Render.Scale == 0 {
		cfg.Render.Scale = 1.5
	}
	if cfg.Highlight.Opacity == 0 {
		cfg.Highlight.Opacity = 0.5
	}
	if cfg.Highlight.Author == "" {
		cfg.Highlight.Author = "marcador"
	}
	if cfg.Export.FileName == "" {
		cfg.Export.FileName = "marcado.pdf"
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "/usr/local/var/marcador/data/exports"
	}
	if cfg.Watch.OutputDir == "" {
		cfg.Watch.OutputDir = cfg.Export.OutputDir
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

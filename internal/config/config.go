package config

import (
	"encoding/json"
	"os"
)

type Config struct {
	InputFile        string `json:"input_file"`
	OutputJSON       string `json:"output_json"`
	OutputCSV        string `json:"output_csv"`
	LogFile          string `json:"log_file"`
	LogLevel         string `json:"log_level"`
	Reference        string `json:"reference"`
	DropGaps         bool   `json:"drop_gaps"`
	ExcludeAmbiguous bool   `json:"exclude_ambiguous"`
	ChunkSize        int    `json:"chunk_size"`

	// web dashboard
	Addr          string `json:"addr"`
	TemplatesDir  string `json:"templates_dir"`
	UploadDir     string `json:"upload_dir"`
	MaxUploadMB   int64  `json:"max_upload_mb"`
	HistoryLimit  int    `json:"history_limit"`
	StoreBackend  string `json:"store_backend"` // "json" or "sqlite"
	StorePath     string `json:"store_path"`
	AccessKeyword string `json:"access_keyword"`
}

// LoadConfig loads a JSON config from the given path. If path is empty, looks for ./config.json.
// A missing file is not fatal: defaults are returned.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}
	f, err := os.Open(path)
	if err != nil {
		// not fatal: return defaults
		return &Config{}, nil
	}
	defer f.Close()
	var c Config
	dec := json.NewDecoder(f)
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

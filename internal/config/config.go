package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/aquasite/internal/crs"
	"github.com/sells-group/aquasite/internal/raster"
	"github.com/sells-group/aquasite/internal/suitability"
)

// Config holds the full application configuration.
type Config struct {
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Years    YearsConfig    `yaml:"years" mapstructure:"years"`
	Criteria CriteriaConfig `yaml:"criteria" mapstructure:"criteria"`
	Area     AreaConfig     `yaml:"area" mapstructure:"area"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the input datasets.
type DataConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	SSTPattern  string `yaml:"sst_pattern" mapstructure:"sst_pattern"` // fmt pattern taking the year
	DepthFile   string `yaml:"depth_file" mapstructure:"depth_file"`
	RegionsFile string `yaml:"regions_file" mapstructure:"regions_file"`
	LabelField  string `yaml:"label_field" mapstructure:"label_field"`
	RasterCRS   string `yaml:"raster_crs" mapstructure:"raster_crs"`   // used when a GeoTIFF has no GeoKeys
	RegionsCRS  string `yaml:"regions_crs" mapstructure:"regions_crs"` // overrides the .prj
}

// YearsConfig is the inclusive range of SST years to average.
type YearsConfig struct {
	Start int `yaml:"start" mapstructure:"start"`
	End   int `yaml:"end" mapstructure:"end"`
}

// CriteriaConfig holds the suitability thresholds.
type CriteriaConfig struct {
	TempLow   float64 `yaml:"temp_low" mapstructure:"temp_low"`
	TempHigh  float64 `yaml:"temp_high" mapstructure:"temp_high"`
	DepthLow  float64 `yaml:"depth_low" mapstructure:"depth_low"`
	DepthHigh float64 `yaml:"depth_high" mapstructure:"depth_high"`
}

// AreaConfig configures cell area computation.
type AreaConfig struct {
	CRS string `yaml:"crs" mapstructure:"crs"` // empty selects the UTM zone of the grid center
}

// OutputConfig configures where reports go.
type OutputConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"`
	NoMap bool   `yaml:"no_map" mapstructure:"no_map"`
	Title string `yaml:"title" mapstructure:"title"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AQUASITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.sst_pattern", "average_annual_sst_%d.tif")
	v.SetDefault("data.depth_file", "depth.tif")
	v.SetDefault("data.regions_file", "wc_regions_clean.shp")
	v.SetDefault("data.label_field", "rgn")
	v.SetDefault("data.raster_crs", "")
	v.SetDefault("data.regions_crs", "")
	v.SetDefault("years.start", 2008)
	v.SetDefault("years.end", 2012)
	v.SetDefault("criteria.temp_low", 14.8)
	v.SetDefault("criteria.temp_high", 22.3)
	v.SetDefault("criteria.depth_low", -150.0)
	v.SetDefault("criteria.depth_high", 0.0)
	v.SetDefault("area.crs", "")
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.no_map", false)
	v.SetDefault("output.title", "Suitable area")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Mode is the command name:
// "evaluate", "check" or "inspect".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "inspect":
	case "check", "evaluate":
		if c.Data.SSTPattern == "" || !strings.Contains(c.Data.SSTPattern, "%") {
			errs = append(errs, "data.sst_pattern must contain a year verb such as %d")
		}
		if c.Data.DepthFile == "" {
			errs = append(errs, "data.depth_file is required")
		}
		if c.Data.RegionsFile == "" {
			errs = append(errs, "data.regions_file is required")
		}
		if c.Data.LabelField == "" {
			errs = append(errs, "data.label_field is required")
		}
		if c.Years.Start > c.Years.End {
			errs = append(errs, fmt.Sprintf("years.start %d must not be after years.end %d", c.Years.Start, c.Years.End))
		}
		for key, def := range map[string]string{
			"data.raster_crs":  c.Data.RasterCRS,
			"data.regions_crs": c.Data.RegionsCRS,
			"area.crs":         c.Area.CRS,
		} {
			if _, err := parseOptionalCRS(def); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			}
		}
		if mode == "evaluate" {
			if err := c.SuitabilityCriteria().Validate(); err != nil {
				errs = append(errs, err.Error())
			}
			if c.Output.Dir == "" {
				errs = append(errs, "output.dir is required")
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SuitabilityCriteria returns the configured thresholds.
func (c *Config) SuitabilityCriteria() suitability.Criteria {
	return suitability.Criteria{
		Temperature: raster.Range{Low: c.Criteria.TempLow, High: c.Criteria.TempHigh},
		Depth:       raster.Range{Low: c.Criteria.DepthLow, High: c.Criteria.DepthHigh},
	}
}

// Sources returns the input locations, resolving any CRS overrides.
func (c *Config) Sources() (suitability.Sources, error) {
	rasterCRS, err := parseOptionalCRS(c.Data.RasterCRS)
	if err != nil {
		return suitability.Sources{}, eris.Wrap(err, "config: data.raster_crs")
	}
	regionsCRS, err := parseOptionalCRS(c.Data.RegionsCRS)
	if err != nil {
		return suitability.Sources{}, eris.Wrap(err, "config: data.regions_crs")
	}
	return suitability.Sources{
		Dir:         c.Data.Dir,
		SSTPattern:  c.Data.SSTPattern,
		StartYear:   c.Years.Start,
		EndYear:     c.Years.End,
		DepthFile:   c.Data.DepthFile,
		RegionsFile: c.Data.RegionsFile,
		LabelField:  c.Data.LabelField,
		RasterCRS:   rasterCRS,
		RegionsCRS:  regionsCRS,
	}, nil
}

// AreaCRS returns the configured area CRS, zero for automatic UTM selection.
func (c *Config) AreaCRS() (crs.CRS, error) {
	ref, err := parseOptionalCRS(c.Area.CRS)
	if err != nil {
		return crs.CRS{}, eris.Wrap(err, "config: area.crs")
	}
	return ref, nil
}

func parseOptionalCRS(def string) (crs.CRS, error) {
	if strings.TrimSpace(def) == "" {
		return crs.CRS{}, nil
	}
	return crs.Parse(def)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

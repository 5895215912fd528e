// Package config holds the experiment arguments shared by every simulated
// federated client: network and loss selection, optimizer hyperparameters,
// logging cadence, and checkpoint locations.
package config

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Defaults applied when a setting is absent from the config file.
const (
	DefaultNetName           = "MNISTMLP"
	DefaultLossName          = "cross_entropy"
	DefaultBatchSize         = 10
	DefaultLearningRate      = 0.01
	DefaultMomentum          = 0.9
	DefaultSchedulerStepSize = 50
	DefaultSchedulerGamma    = 0.5
	DefaultMinLR             = 1e-10
	DefaultLogInterval       = 100
	DefaultMu                = 0.0
	DefaultModelDirName      = "default_models"
	DefaultSaveModelDirName  = "models"
	DefaultStartSuffix       = "start"
	DefaultEndSuffix         = "end"
)

// Params is the raw, file-shaped form of the experiment settings. Zero-valued
// fields are replaced with defaults by New.
type Params struct {
	NetName           string  `mapstructure:"net_name"`
	LossName          string  `mapstructure:"loss_name"`
	BatchSize         int     `mapstructure:"batch_size"`
	LearningRate      float64 `mapstructure:"learning_rate"`
	Momentum          float64 `mapstructure:"momentum"`
	SchedulerStepSize int     `mapstructure:"scheduler_step_size"`
	SchedulerGamma    float64 `mapstructure:"scheduler_gamma"`
	MinLR             float64 `mapstructure:"min_lr"`
	LogInterval       int     `mapstructure:"log_interval"`
	Mu                float64 `mapstructure:"mu"`
	DefaultModelDir   string  `mapstructure:"default_model_dir"`
	SaveModelDir      string  `mapstructure:"save_model_dir"`
	StartSuffix       string  `mapstructure:"start_suffix"`
	EndSuffix         string  `mapstructure:"end_suffix"`
}

// Arguments is the read-only view of experiment settings handed to clients.
// Construct it with New or Load.
type Arguments struct {
	params Params

	net    NetFactory
	loss   LossFactory
	logger logrus.FieldLogger
}

// New validates params, fills in defaults, and resolves the network and loss
// registrations. logger may be nil, in which case the standard logrus logger
// is used.
func New(params Params, logger logrus.FieldLogger) (*Arguments, error) {
	if params.NetName == "" {
		params.NetName = DefaultNetName
	}
	if params.LossName == "" {
		params.LossName = DefaultLossName
	}
	if params.BatchSize <= 0 {
		params.BatchSize = DefaultBatchSize
	}
	if params.LearningRate <= 0 {
		params.LearningRate = DefaultLearningRate
	}
	if params.Momentum < 0 {
		return nil, fmt.Errorf("momentum must be non-negative, got %v", params.Momentum)
	}
	if params.Momentum == 0 {
		params.Momentum = DefaultMomentum
	}
	if params.SchedulerStepSize <= 0 {
		params.SchedulerStepSize = DefaultSchedulerStepSize
	}
	if params.SchedulerGamma <= 0 {
		params.SchedulerGamma = DefaultSchedulerGamma
	}
	if params.MinLR <= 0 {
		params.MinLR = DefaultMinLR
	}
	if params.LogInterval <= 0 {
		params.LogInterval = DefaultLogInterval
	}
	if params.Mu < 0 {
		return nil, fmt.Errorf("proximal coefficient mu must be non-negative, got %v", params.Mu)
	}
	if params.DefaultModelDir == "" {
		params.DefaultModelDir = DefaultModelDirName
	}
	if params.SaveModelDir == "" {
		params.SaveModelDir = DefaultSaveModelDirName
	}
	if params.StartSuffix == "" {
		params.StartSuffix = DefaultStartSuffix
	}
	if params.EndSuffix == "" {
		params.EndSuffix = DefaultEndSuffix
	}

	net, err := NetByName(params.NetName)
	if err != nil {
		return nil, err
	}
	loss, err := LossByName(params.LossName)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Arguments{
		params: params,
		net:    net,
		loss:   loss,
		logger: logger,
	}, nil
}

// Load reads a YAML/JSON/TOML config file and builds Arguments from it.
func Load(path string, logger logrus.FieldLogger) (*Arguments, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var params Params
	if err := v.Unmarshal(&params); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return New(params, logger)
}

// Net returns the factory for the configured network architecture.
func (a *Arguments) Net() NetFactory { return a.net }

// NetName returns the registered name of the configured network.
func (a *Arguments) NetName() string { return a.params.NetName }

// Loss returns the factory for the configured loss function.
func (a *Arguments) Loss() LossFactory { return a.loss }

// BatchSize returns the training and evaluation batch size.
func (a *Arguments) BatchSize() int { return a.params.BatchSize }

// LearningRate returns the initial SGD learning rate.
func (a *Arguments) LearningRate() float64 { return a.params.LearningRate }

// Momentum returns the SGD momentum coefficient.
func (a *Arguments) Momentum() float64 { return a.params.Momentum }

// SchedulerStepSize returns the epoch count between learning-rate decays.
func (a *Arguments) SchedulerStepSize() int { return a.params.SchedulerStepSize }

// SchedulerGamma returns the multiplicative learning-rate decay factor.
func (a *Arguments) SchedulerGamma() float64 { return a.params.SchedulerGamma }

// MinLR returns the floor below which the scheduler will not decay the rate.
func (a *Arguments) MinLR() float64 { return a.params.MinLR }

// LogInterval returns the batch count between running-loss log lines.
func (a *Arguments) LogInterval() int { return a.params.LogInterval }

// Mu returns the proximal-term coefficient. Zero disables the proximal term.
func (a *Arguments) Mu() float64 { return a.params.Mu }

// DefaultModelDir returns the directory holding shared initial weights,
// one <net_name>.model file per registered network.
func (a *Arguments) DefaultModelDir() string { return a.params.DefaultModelDir }

// SaveModelDir returns the directory clients write round checkpoints into.
func (a *Arguments) SaveModelDir() string { return a.params.SaveModelDir }

// StartSuffix returns the checkpoint suffix marking round-start snapshots.
func (a *Arguments) StartSuffix() string { return a.params.StartSuffix }

// EndSuffix returns the checkpoint suffix marking round-end snapshots.
func (a *Arguments) EndSuffix() string { return a.params.EndSuffix }

// Logger returns the experiment-wide logger.
func (a *Arguments) Logger() logrus.FieldLogger { return a.logger }

// NewExperimentID returns a fresh unique identifier for one experiment run,
// used to keep checkpoint directories from colliding.
func NewExperimentID() string {
	return uuid.NewString()
}

package config

// config.go 负责加载与校验 YAML 配置，并提供默认值填充。
import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LogConfig        `yaml:"log"`
	Server    ServerConfig     `yaml:"server"`
	Storage   StorageConfig    `yaml:"storage"`
	Refresh   RefreshConfig    `yaml:"refresh"`
	Instances []InstanceConfig `yaml:"instances"`
}

type LogConfig struct {
	Level LogLevel `yaml:"level"`
}

type LogLevel string

func (l LogLevel) ToSlogLevel() slog.Level {
	switch strings.ToLower(string(l)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	HTTPClientTimeout Duration `yaml:"http_client_timeout"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type RefreshConfig struct {
	// ConnectionInterval 为连接状态的周期刷新间隔。
	ConnectionInterval Duration `yaml:"connection_interval"`
}

// InstanceConfig 描述一个网关实例：一组凭据对应一个客户端。
type InstanceConfig struct {
	ID         string `yaml:"id"`
	ServerURL  string `yaml:"server_url"`
	InstanceID string `yaml:"instance_id"`
	APIKey     string `yaml:"api_key"`
	VerifySSL  *bool  `yaml:"verify_ssl"`
}

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return errors.New("duration: 仅支持标量值")
	}
	s := strings.TrimSpace(value.Value)
	if s == "" {
		*d = 0
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrap(err, "duration")
	}
	*d = Duration(dd)
	return nil
}

func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

var instanceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,31}$`)

func Load(path string) (Config, error) {
	slog.Info("读取配置文件", "path", path)

	b, err := os.ReadFile(path)
	if err != nil {
		slog.Error("读取配置文件失败", "path", path, "error", err)
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		slog.Error("解析配置文件失败（YAML）", "path", path, "error", err)
		return Config{}, err
	}

	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		slog.Error("配置校验失败", "path", path, "error", err)
		return Config{}, err
	}

	slog.Info("配置加载成功（敏感字段已脱敏）",
		"server.listen_addr", cfg.Server.ListenAddr,
		"server.http_client_timeout", cfg.Server.HTTPClientTimeout.ToDuration().String(),
		"server.read_header_timeout", cfg.Server.ReadHeaderTimeout.ToDuration().String(),
		"storage.data_dir", cfg.Storage.DataDir,
		"refresh.connection_interval", cfg.Refresh.ConnectionInterval.ToDuration().String(),
		"log.level", string(cfg.Log.Level),
		"instances_count", len(cfg.Instances),
		"instances_sample", describeInstances(cfg.Instances, 3),
	)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.HTTPClientTimeout == 0 {
		cfg.Server.HTTPClientTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = Duration(10 * time.Second)
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Refresh.ConnectionInterval == 0 {
		cfg.Refresh.ConnectionInterval = Duration(time.Minute)
	}
	for i := range cfg.Instances {
		if cfg.Instances[i].VerifySSL == nil {
			v := true
			cfg.Instances[i].VerifySSL = &v
		}
	}
}

func validate(cfg Config) error {
	var problems []string

	if cfg.Server.ListenAddr == "" {
		problems = append(problems, "server.listen_addr 不能为空")
	}
	if cfg.Server.HTTPClientTimeout.ToDuration() <= 0 {
		problems = append(problems, "server.http_client_timeout 不能为空且必须为正数（例如 30s）")
	}
	if cfg.Server.ReadHeaderTimeout.ToDuration() <= 0 {
		problems = append(problems, "server.read_header_timeout 不能为空且必须为正数（例如 10s）")
	}
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		problems = append(problems, "storage.data_dir 不能为空")
	}
	if cfg.Refresh.ConnectionInterval.ToDuration() <= 0 {
		problems = append(problems, "refresh.connection_interval 不能为空且必须为正数（例如 1m）")
	}

	if len(cfg.Instances) == 0 {
		problems = append(problems, "至少配置一个网关实例：instances")
	}

	seen := make(map[string]struct{})
	for i, ins := range cfg.Instances {
		prefix := fmt.Sprintf("instances[%d].", i)
		if strings.TrimSpace(ins.ID) == "" {
			problems = append(problems, prefix+"id 不能为空")
		} else {
			if !instanceIDPattern.MatchString(ins.ID) {
				problems = append(problems, prefix+"id 不合法（仅允许字母数字及 _ -，长度≤32，且首字符为字母数字）")
			}
			if _, ok := seen[ins.ID]; ok {
				problems = append(problems, prefix+"id 重复")
			}
			seen[ins.ID] = struct{}{}
		}
		if strings.TrimSpace(ins.ServerURL) == "" {
			problems = append(problems, prefix+"server_url 不能为空")
		} else {
			u, err := url.Parse(ins.ServerURL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				problems = append(problems, prefix+"server_url 不合法（示例：http://localhost:3000）")
			}
		}
		if strings.TrimSpace(ins.InstanceID) == "" {
			problems = append(problems, prefix+"instance_id 不能为空")
		}
		if strings.TrimSpace(ins.APIKey) == "" {
			problems = append(problems, prefix+"api_key 不能为空")
		}
	}

	if len(problems) > 0 {
		return errors.Newf("配置校验失败: %s", strings.Join(problems, "; "))
	}
	return nil
}

func describeInstances(instances []InstanceConfig, max int) []string {
	if len(instances) == 0 || max <= 0 {
		return nil
	}
	n := len(instances)
	if n > max {
		n = max
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%s(api_key=%s)", instances[i].ID, maskSensitive(instances[i].APIKey)))
	}
	return out
}

func maskSensitive(s string) string {
	input := strings.TrimSpace(s)
	if input == "" {
		return ""
	}
	if len(input) <= 2 {
		return "**"
	}
	if len(input) <= 8 {
		return input[:1] + strings.Repeat("*", len(input)-2) + input[len(input)-1:]
	}
	return input[:3] + strings.Repeat("*", len(input)-6) + input[len(input)-3:]
}

package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	Redis      Redis  `yaml:"redis"`
	Game       Game   `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Game holds the per-match rule constants. They are data, not code: tuning them
// must not require touching the engine.
type Game struct {
	TurnSeconds         int     `yaml:"turn-seconds" env:"GAME_TURN_SECONDS" env-default:"30"`
	CombatTurnSeconds   int     `yaml:"combat-turn-seconds" env:"GAME_COMBAT_TURN_SECONDS" env-default:"5"`
	ActionPointsPerTurn int     `yaml:"action-points-per-turn" env:"GAME_ACTION_POINTS" env-default:"1"`
	EscapeChance        float64 `yaml:"escape-chance" env:"GAME_ESCAPE_CHANCE" env-default:"0.3"`
	MaxFleeAttempts     int     `yaml:"max-flee-attempts" env:"GAME_MAX_FLEE_ATTEMPTS" env-default:"2"`
	AttackDiceSides     int     `yaml:"attack-dice-sides" env:"GAME_ATTACK_DICE" env-default:"6"`
	DefenseDiceSides    int     `yaml:"defense-dice-sides" env:"GAME_DEFENSE_DICE" env-default:"4"`
	WinCountToFinish    int     `yaml:"win-count-to-finish" env:"GAME_WIN_COUNT" env-default:"3"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

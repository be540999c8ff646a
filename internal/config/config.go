package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	DBType     string `env:"DBType" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DBUser" envDefault:""`
	DBPassword string `env:"DBPassword" envDefault:""`
	DBAddr     string `env:"DBAddr" envDefault:""`
	DBName     string `env:"DBName" envDefault:"tomatodo"`
	DBPath     string `env:"DBPath" envDefault:"datas/tomatodo.db"`
	DBPort     string `env:"DBPort" envDefault:"3306"`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"tomatodo"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`

	// 微信小程序凭据，未配置时 code 换取 openid 的登录方式不可用
	WechatAppID     string `env:"WECHAT_APPID" envDefault:""`
	WechatSecret    string `env:"WECHAT_SECRET" envDefault:""`
	WechatAPIBase   string `env:"WECHAT_API_BASE" envDefault:"https://api.weixin.qq.com"`
	WechatTimeoutMS int    `env:"WECHAT_TIMEOUT_MS" envDefault:"5000"`

	// 每日重置任务触发时刻（服务器本地时间）
	ResetHour   int  `env:"RESET_HOUR" envDefault:"0"`
	ResetMinute int  `env:"RESET_MINUTE" envDefault:"0"`
	ResetEnable bool `env:"RESET_ENABLE" envDefault:"true"`
}

func ParseConfig() (Config, error) {
	var Conf Config
	err := env.Parse(&Conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	logrus.Debugf("%#v\n", Conf)
	return Conf, nil
}

// Config loading for the sqlguard CLI. Settings come from, in increasing
// precedence: built-in defaults, an optional sqlguard.yaml in the working
// directory or $HOME, SQLGUARD_* environment variables (a .env file is
// honored), and command-line flags.
package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"sqlguard/internal/optimizer"
	"sqlguard/internal/suggest"
	"sqlguard/internal/validator"
)

const (
	configFileName = "sqlguard"
	configFileType = "yaml"
	envPrefix      = "SQLGUARD"

	cfgKeyExtraKeywords   = "validator.extra_keywords"
	cfgKeyUnusedCTE       = "optimizer.remove_unused_cte"
	cfgKeyPushDown        = "optimizer.push_down_filters"
	cfgKeyRedundant       = "optimizer.remove_redundant_distinct_order_by"
	cfgKeyQualify         = "optimizer.subquery_to_qualify"
	cfgKeySuggestLimit    = "suggest.limit"
	cfgKeySuggestMinScore = "suggest.min_score"
	cfgKeyScanConcurrency = "scan.concurrency"
)

func loadConfig() (*viper.Viper, error) {
	// a missing .env is the normal case
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault(cfgKeyExtraKeywords, []string{})
	v.SetDefault(cfgKeyUnusedCTE, true)
	v.SetDefault(cfgKeyPushDown, true)
	v.SetDefault(cfgKeyRedundant, true)
	v.SetDefault(cfgKeyQualify, true)
	v.SetDefault(cfgKeySuggestLimit, 5)
	v.SetDefault(cfgKeySuggestMinScore, 0.3)
	v.SetDefault(cfgKeyScanConcurrency, 8)

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// running without a config file is fine
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}

func validatorConfig(v *viper.Viper) validator.Config {
	return validator.Config{
		ExtraKeywords: v.GetStringSlice(cfgKeyExtraKeywords),
	}
}

func optimizerConfig(v *viper.Viper) optimizer.Config {
	return optimizer.Config{
		RemoveUnusedCTE:                v.GetBool(cfgKeyUnusedCTE),
		PushDownFilters:                v.GetBool(cfgKeyPushDown),
		RemoveRedundantDistinctOrderBy: v.GetBool(cfgKeyRedundant),
		SubqueryToQualify:              v.GetBool(cfgKeyQualify),
	}
}

func suggestConfig(v *viper.Viper) suggest.Config {
	return suggest.Config{
		Limit:    v.GetInt(cfgKeySuggestLimit),
		MinScore: v.GetFloat64(cfgKeySuggestMinScore),
	}
}

// Package cmd 包含 lumenctl CLI 工具的所有命令实现。
// 使用 cobra 框架构建命令行接口。
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 全局命令行标志变量
var (
	cfgFile   string // 配置文件路径
	apiURL    string // API 服务器地址
	outputFmt string // 输出格式（table/json/yaml）
)

// rootCmd 是 CLI 的根命令，所有子命令都挂载在它之下。
var rootCmd = &cobra.Command{
	Use:   "lumenctl",
	Short: "Lumenctl - Live Preview CLI",
	Long: `lumenctl 是用于操作 Lumen 实时预览服务的命令行工具。

使用示例:
  # 推送本地片段文件
  lumenctl push --markup index.html --styles style.css --script script.js

  # 监视目录并在保存时自动推送
  lumenctl push --watch ./src

  # 跟随控制台输出
  lumenctl logs --follow

  # 查看管线状态
  lumenctl status`,
}

// Execute 执行根命令，由 main 包调用。
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认为 $HOME/.lumenctl.yaml）")
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api-url", "u", "http://localhost:8080", "API 服务器地址")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "输出格式（table、json、yaml）")

	viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

// initConfig 按优先级加载配置：命令行标志 > 环境变量 > 配置文件。
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".lumenctl")
	}

	// 环境变量格式：LUMEN_<KEY>，如 LUMEN_API_URL
	viper.SetEnvPrefix("LUMEN")
	viper.AutomaticEnv()
	_ = viper.BindEnv("api_url", "LUMEN_API_URL")
	_ = viper.BindEnv("output", "LUMEN_OUTPUT")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/seblemaguer/marytts-http-server/internal/audio"
	"github.com/seblemaguer/marytts-http-server/internal/config"
	"github.com/seblemaguer/marytts-http-server/internal/database"
	"github.com/seblemaguer/marytts-http-server/internal/frontend"
	"github.com/seblemaguer/marytts-http-server/internal/label"
	"github.com/seblemaguer/marytts-http-server/internal/logger"
	"github.com/seblemaguer/marytts-http-server/internal/metrics"
	"github.com/seblemaguer/marytts-http-server/internal/synth"
	"github.com/seblemaguer/marytts-http-server/internal/utterance"
)

func main() {
	configPath := flag.String("config", "configs/htsengine.yaml", "配置文件路径，不存在时使用默认配置")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 收到信号时取消 ctx，正在运行的引擎进程会被杀掉
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在停止...", sig)
		cancel()
	}()

	switch args[0] {
	case "synth":
		err = cmdSynth(ctx, cfg, args[1:])
	case "check":
		err = cmdCheck(cfg)
	case "history":
		err = cmdHistory(cfg, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if cfg.Metrics.Textfile != "" {
		if merr := metrics.WriteTextfile(cfg.Metrics.Textfile); merr != nil {
			logger.Warnf("[main] %v", merr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "HTS 引擎合成工具")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "用法: htsengine [-config <path>] <command> [args]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "命令:")
	fmt.Fprintln(os.Stderr, "  synth -in <utt.json> | -text <中文>  合成话语")
	fmt.Fprintln(os.Stderr, "        [-out result.json] [-wav out.wav] [-play]")
	fmt.Fprintln(os.Stderr, "  check                               检查引擎和声音模型")
	fmt.Fprintln(os.Stderr, "  history [-n 20]                     查看最近的合成记录")
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newSynthesizer(cfg *config.Config, journal synth.Journal) *synth.Synthesizer {
	var opts []synth.Option
	if journal != nil {
		opts = append(opts, synth.WithJournal(journal))
	}
	return synth.New(
		synth.OptionsFromConfig(cfg.Engine),
		label.NewHTSExporter(cfg.Label.FeatureKeys),
		opts...,
	)
}

func openJournal(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func cmdSynth(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	in := fs.String("in", "", "输入话语 JSON 文件")
	text := fs.String("text", "", "输入中文文本，按拼音生成音素")
	out := fs.String("out", "", "输出话语 JSON 文件，- 表示标准输出")
	wavOut := fs.String("wav", "", "输出波形文件")
	play := fs.Bool("play", false, "合成后播放")
	if err := fs.Parse(args); err != nil {
		return err
	}

	utt, err := readInput(*in, *text)
	if err != nil {
		return err
	}

	var journal synth.Journal
	if cfg.Journal.Enabled {
		db, err := openJournal(cfg)
		if err != nil {
			logger.Warnf("[main] 打开合成记录失败，本次不记录: %v", err)
		} else {
			defer db.Close()
			journal = db
		}
	}

	s := newSynthesizer(cfg, journal)
	if _, err := s.Process(ctx, utt); err != nil {
		return err
	}

	item, err := audioOf(utt)
	if err != nil {
		return err
	}
	logger.Infof("[main] 合成完成: %d Hz, %d 声道, 时长 %v", item.SampleRate, item.Channels, item.Duration)

	if *wavOut != "" {
		if err := os.WriteFile(*wavOut, item.Data, 0644); err != nil {
			return fmt.Errorf("写入波形失败: %w", err)
		}
	}
	if *out != "" {
		if err := writeUtterance(*out, utt); err != nil {
			return err
		}
	}
	if *play {
		player, err := audio.NewPlayer()
		if err != nil {
			return err
		}
		defer player.Close()
		if err := player.PlayWAV(ctx, item.Data); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func readInput(in, text string) (*utterance.Utterance, error) {
	switch {
	case in != "" && text != "":
		return nil, errors.New("-in 和 -text 只能指定一个")
	case text != "":
		return frontend.NewPinyin().Build(text)
	case in != "":
		data, err := os.ReadFile(in)
		if err != nil {
			return nil, fmt.Errorf("读取话语失败: %w", err)
		}
		utt := utterance.New()
		if err := json.Unmarshal(data, utt); err != nil {
			return nil, fmt.Errorf("解析话语 %s 失败: %w", in, err)
		}
		return utt, nil
	default:
		return nil, errors.New("需要 -in 或 -text")
	}
}

func audioOf(utt *utterance.Utterance) (*utterance.AudioItem, error) {
	seq, err := utt.Sequence(utterance.StreamAudio)
	if err != nil {
		return nil, err
	}
	if seq.Len() == 0 {
		return nil, errors.New("AUDIO 数据流为空")
	}
	item, ok := seq.Get(0).(*utterance.AudioItem)
	if !ok {
		return nil, fmt.Errorf("AUDIO 元素类型错误: %T", seq.Get(0))
	}
	return item, nil
}

func writeUtterance(path string, utt *utterance.Utterance) error {
	data, err := json.MarshalIndent(utt, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化话语失败: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func cmdCheck(cfg *config.Config) error {
	if err := newSynthesizer(cfg, nil).CheckStartup(); err != nil {
		return err
	}
	fmt.Printf("引擎: %s\n声音模型: %s\n并发上限: %d\n", cfg.Engine.Binary, cfg.Engine.Voice, cfg.Engine.MaxConcurrent)
	return nil
}

func cmdHistory(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	n := fs.Int("n", 20, "显示条数")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.RecentRuns(*n)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("没有合成记录。")
		return nil
	}

	fmt.Printf("最近 %d 次合成 (%s):\n", len(runs), db.Path())
	for _, r := range runs {
		status := r.Status
		if r.ErrorKind != "" {
			status += "/" + r.ErrorKind
		}
		fmt.Printf("  %s  %-36s  %-28s  phones=%-4d exit=%-3d %v  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.ID, status, r.Phones, r.ExitCode, r.Elapsed, r.Voice)
	}
	return nil
}

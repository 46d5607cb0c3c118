// Package synth 调用外部 HTS 引擎把话语合成为波形，
// 并用引擎输出的时长标注重新对齐音素时间。
package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/seblemaguer/marytts-http-server/internal/audio"
	"github.com/seblemaguer/marytts-http-server/internal/config"
	"github.com/seblemaguer/marytts-http-server/internal/database"
	"github.com/seblemaguer/marytts-http-server/internal/duration"
	"github.com/seblemaguer/marytts-http-server/internal/engine"
	"github.com/seblemaguer/marytts-http-server/internal/label"
	"github.com/seblemaguer/marytts-http-server/internal/logger"
	"github.com/seblemaguer/marytts-http-server/internal/metrics"
	"github.com/seblemaguer/marytts-http-server/internal/tempfiles"
	"github.com/seblemaguer/marytts-http-server/internal/utterance"
)

// tempPrefix 是临时文件名前缀。
const tempPrefix = "htsengine"

// Options 是合成器的运行参数，通常由 config.EngineConfig 转换而来。
type Options struct {
	Binary        string
	Voice         string
	Flags         engine.Flags
	ExtraArgs     []string
	Env           []string
	Timeout       time.Duration
	MaxConcurrent int
	TempDir       string
	OutputDir     string
	// ReplaceAudio 为 true 时覆盖已有的 AUDIO，否则拒绝。
	ReplaceAudio bool
	StderrTail   int
}

// OptionsFromConfig 把引擎配置转换为 Options。
func OptionsFromConfig(cfg config.EngineConfig) Options {
	return Options{
		Binary:        cfg.Binary,
		Voice:         cfg.Voice,
		Flags:         cfg.Flags,
		ExtraArgs:     cfg.ExtraArgs,
		Env:           cfg.EnvList(),
		Timeout:       cfg.Timeout,
		MaxConcurrent: cfg.MaxConcurrent,
		TempDir:       cfg.TempDir,
		OutputDir:     cfg.OutputDir,
		ReplaceAudio:  cfg.AudioPolicy == config.AudioPolicyReplace,
		StderrTail:    cfg.StderrTail,
	}
}

// Journal 持久化每次合成调用的结果。
type Journal interface {
	RecordRun(run database.Run) error
}

// Synthesizer 是 HTS 引擎合成模块。可被多个 goroutine 并发调用，
// 每次调用使用独立命名的临时文件。
type Synthesizer struct {
	opts     Options
	exporter label.Exporter
	journal  Journal
	onLine   engine.LineHandler
	limiter  *semaphore.Weighted
}

// Option 配置 Synthesizer。
type Option func(*Synthesizer)

// WithJournal 记录每次调用的结果。
func WithJournal(j Journal) Option {
	return func(s *Synthesizer) { s.journal = j }
}

// WithLineHandler 额外接收引擎输出的每一行。
func WithLineHandler(h engine.LineHandler) Option {
	return func(s *Synthesizer) { s.onLine = h }
}

// New 创建合成器。exporter 为 nil 时使用默认的 HTS 标注导出器。
func New(opts Options, exporter label.Exporter, extra ...Option) *Synthesizer {
	if exporter == nil {
		exporter = label.NewHTSExporter(nil)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	s := &Synthesizer{
		opts:     opts,
		exporter: exporter,
		limiter:  semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}
	for _, o := range extra {
		o(s)
	}
	return s
}

// CheckStartup 确认引擎可执行文件和声音模型可用。
func (s *Synthesizer) CheckStartup() error {
	path, err := engine.LookPath(s.opts.Binary)
	if err != nil {
		return fail(KindProcessLaunch, "启动检查", err)
	}
	st, err := os.Stat(s.opts.Voice)
	if err != nil {
		return fail(KindResource, "启动检查", fmt.Errorf("声音模型不可用: %w", err))
	}
	if !st.Mode().IsRegular() {
		return fail(KindResource, "启动检查", fmt.Errorf("声音模型 %s 不是普通文件", s.opts.Voice))
	}
	if s.opts.TempDir != "" {
		if err := os.MkdirAll(s.opts.TempDir, 0700); err != nil {
			return fail(KindResource, "启动检查", err)
		}
	}
	logger.Infof("[synth] 启动检查通过: engine=%s voice=%s", path, s.opts.Voice)
	return nil
}

// CheckInput 确认话语包含合成需要的数据流，不产生任何副作用。
func (s *Synthesizer) CheckInput(utt *utterance.Utterance) error {
	if utt == nil {
		return fail(KindMissingData, "检查输入", errors.New("话语为空"))
	}
	for _, typ := range []utterance.StreamType{utterance.StreamFeatures, utterance.StreamPhone} {
		if !utt.HasSequence(typ) {
			return fail(KindMissingData, "检查输入", fmt.Errorf("%s: %w", typ, utterance.ErrStreamNotFound))
		}
	}
	if !s.opts.ReplaceAudio && utt.HasSequence(utterance.StreamAudio) {
		return fail(KindDuplicateStream, "检查输入",
			fmt.Errorf("%s: %w", utterance.StreamAudio, utterance.ErrStreamExists))
	}
	return nil
}

// Process 合成话语：导出标注、运行引擎、用时长标注重建 PHONE，并附加 AUDIO。
// 失败时话语保持原样；临时文件在任何情况下都会被删除。
func (s *Synthesizer) Process(ctx context.Context, utt *utterance.Utterance) (_ *utterance.Utterance, err error) {
	run := database.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Voice:     filepath.Base(s.opts.Voice),
	}
	log := logger.With("run_id", run.ID)
	defer func() { s.finish(&run, log, err) }()

	if err := s.CheckInput(utt); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(KindProcessLaunch, "等待引擎空闲", err)
	}
	if err := s.limiter.Acquire(ctx, 1); err != nil {
		return nil, fail(KindProcessLaunch, "等待引擎空闲", err)
	}
	defer s.limiter.Release(1)

	text, err := s.exporter.Export(utt)
	if err != nil {
		return nil, fail(KindLabelExport, "导出标注", err)
	}

	files, err := tempfiles.Allocate(s.opts.TempDir, tempPrefix)
	if err != nil {
		return nil, fail(KindResource, "分配临时文件", err)
	}
	released := false
	defer func() {
		if released {
			return
		}
		if rerr := files.Release(); rerr != nil {
			metrics.RecordCleanupFailure()
			log.Warnf("[synth] 删除临时文件失败: %v", rerr)
		}
	}()

	if err := os.WriteFile(files.Label, []byte(text), 0600); err != nil {
		return nil, fail(KindResource, "写入标注", err)
	}

	res, err := s.invoke(ctx, files, log)
	run.ExitCode = res.ExitCode
	if err != nil {
		return nil, err
	}

	phones, err := s.realign(utt, files.DurationLabel)
	if err != nil {
		return nil, err
	}

	item, err := s.loadAudio(files.Wave, run.ID)
	if err != nil {
		return nil, err
	}

	released = true
	if err := files.Release(); err != nil {
		metrics.RecordCleanupFailure()
		s.discard(item, log)
		return nil, fail(KindResource, "删除临时文件", err)
	}

	if err := s.commit(utt, phones, item); err != nil {
		s.discard(item, log)
		return nil, err
	}
	run.Phones = phones.Len()
	return utt, nil
}

// invoke 运行引擎并把结果归类为启动失败或执行失败。
func (s *Synthesizer) invoke(ctx context.Context, files *tempfiles.Set, log *zap.SugaredLogger) (engine.Result, error) {
	cmd, err := engine.BuildCommand(s.opts.Binary, s.opts.ExtraArgs, s.opts.Flags, engine.Invocation{
		Voice:         s.opts.Voice,
		Wave:          files.Wave,
		DurationLabel: files.DurationLabel,
		Label:         files.Label,
	})
	if err != nil {
		return engine.Result{ExitCode: -1}, fail(KindProcessLaunch, "构造引擎命令", err)
	}
	cmd.Env = s.opts.Env
	cmd.StderrTail = s.opts.StderrTail

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	log.Debugf("[synth] 启动引擎: %s %s", cmd.Binary, strings.Join(cmd.Args, " "))
	res, err := engine.Run(ctx, cmd, s.lineHandler(log))

	var launchErr *engine.LaunchError
	switch {
	case errors.As(err, &launchErr):
		metrics.RecordEngineRun("launch_error", 0)
		res.ExitCode = -1
		return res, fail(KindProcessLaunch, "启动引擎", err)
	case err != nil:
		status := "failed"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.RecordEngineRun(status, res.Elapsed.Seconds())
		return res, fail(KindProcessExecution, "运行引擎", err)
	}

	metrics.RecordEngineRun("success", res.Elapsed.Seconds())
	log.Debugf("[synth] 引擎结束: 耗时 %v, stdout %d 行, stderr %d 行",
		res.Elapsed, res.StdoutLines, res.StderrLines)
	return res, nil
}

// lineHandler 把引擎输出写入日志，并转发给 WithLineHandler 注册的回调。
func (s *Synthesizer) lineHandler(log *zap.SugaredLogger) engine.LineHandler {
	return func(stream engine.Stream, line string) {
		if stream == engine.Stderr {
			log.Warnf("[engine] %s", line)
		} else {
			log.Debugf("[engine] %s", line)
		}
		if s.onLine != nil {
			s.onLine(stream, line)
		}
	}
}

// realign 读取时长标注并生成新的 PHONE 序列，不修改话语。
func (s *Synthesizer) realign(utt *utterance.Utterance, path string) (*utterance.Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fail(KindResource, "读取时长标注", err)
	}
	defer f.Close()

	recs, err := duration.Parse(f)
	if err != nil {
		var fe *duration.FormatError
		if errors.As(err, &fe) {
			return nil, fail(KindMismatch, "解析时长标注", err)
		}
		return nil, fail(KindResource, "读取时长标注", err)
	}

	phones, err := utt.Sequence(utterance.StreamPhone)
	if err != nil {
		return nil, fail(KindMissingData, "对齐时长", err)
	}
	seq, err := duration.Realign(phones, recs)
	if err != nil {
		return nil, fail(KindMismatch, "对齐时长", err)
	}
	return seq, nil
}

// loadAudio 读取引擎输出的波形，配置了输出目录时另存一份。
func (s *Synthesizer) loadAudio(path, runID string) (*utterance.AudioItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fail(KindResource, "读取波形", err)
	}
	if len(data) == 0 {
		return nil, fail(KindProcessExecution, "读取波形", errors.New("引擎没有输出波形"))
	}

	item := &utterance.AudioItem{Data: data}
	if info, err := audio.ReadWAVInfo(data); err != nil {
		logger.Warnf("[synth] 无法解析波形文件头，按不透明数据处理: %v", err)
	} else {
		item.SampleRate = info.SampleRate
		item.Channels = info.Channels
		item.BitDepth = info.BitDepth
		item.Duration = info.Duration
	}

	if s.opts.OutputDir != "" {
		if err := os.MkdirAll(s.opts.OutputDir, 0755); err != nil {
			return nil, fail(KindResource, "保存波形", err)
		}
		dst := filepath.Join(s.opts.OutputDir, runID+".wav")
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return nil, fail(KindResource, "保存波形", err)
		}
		item.Path = dst
	}
	return item, nil
}

// commit 一次性替换 PHONE 并附加 AUDIO。
func (s *Synthesizer) commit(utt *utterance.Utterance, phones *utterance.Sequence, item *utterance.AudioItem) error {
	var absent []utterance.StreamType
	if !s.opts.ReplaceAudio {
		absent = append(absent, utterance.StreamAudio)
	}
	err := utt.Apply(map[utterance.StreamType]*utterance.Sequence{
		utterance.StreamPhone: phones,
		utterance.StreamAudio: utterance.NewSequence(item),
	}, absent...)
	if err != nil {
		return fail(KindDuplicateStream, "附加音频", err)
	}
	return nil
}

// discard 删除已保存但最终没有交给调用方的波形文件。
func (s *Synthesizer) discard(item *utterance.AudioItem, log *zap.SugaredLogger) {
	if item == nil || item.Path == "" {
		return
	}
	if err := os.Remove(item.Path); err != nil && !os.IsNotExist(err) {
		log.Warnf("[synth] 删除输出波形 %s 失败: %v", item.Path, err)
	}
}

func (s *Synthesizer) finish(run *database.Run, log *zap.SugaredLogger, err error) {
	run.Elapsed = time.Since(run.StartedAt)
	if err != nil {
		kind := KindOf(err)
		run.Status = "failed"
		run.ErrorKind = kind.String()
		metrics.RecordFailure(kind.String())
		log.Warnf("[synth] 合成失败 (%v): %v", run.Elapsed, err)
	} else {
		run.Status = "success"
		metrics.RecordPhones(run.Phones)
		log.Infof("[synth] 合成完成: %d 个音素, 耗时 %v", run.Phones, run.Elapsed)
	}

	if s.journal == nil {
		return
	}
	if jerr := s.journal.RecordRun(*run); jerr != nil {
		log.Warnf("[synth] 写入合成记录失败: %v", jerr)
	}
}

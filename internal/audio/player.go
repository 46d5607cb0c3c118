package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/seblemaguer/marytts-http-server/internal/logger"
)

// Player 使用 malgo (miniaudio) 播放合成结果。
type Player struct {
	ctx    *malgo.AllocatedContext
	mu     sync.Mutex
	closed bool
}

// NewPlayer 创建播放器。
func NewPlayer() (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("[audio] 初始化 miniaudio: %w", err)
	}
	return &Player{ctx: ctx}, nil
}

// PlayWAV 解码并播放一段 WAV 数据，阻塞直到播放完成或 ctx 被取消。
func (p *Player) PlayWAV(ctx context.Context, data []byte) error {
	samples, info, err := DecodePCM16(data)
	if err != nil {
		return err
	}
	return p.Play(ctx, samples, info.SampleRate, info.Channels)
}

// Play 通过默认扬声器播放交织的 16 位样本。
func (p *Player) Play(ctx context.Context, samples []int16, sampleRate, channels int) error {
	if len(samples) == 0 {
		return nil
	}
	if channels <= 0 {
		channels = 1
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("[audio] 播放器已关闭")
	}

	pcm := PCMBytes(samples)
	frameBytes := channels * 2
	var (
		pos      int
		finished sync.Once
	)
	done := make(chan struct{})

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			want := int(frameCount) * frameBytes
			n := copy(out[:want], pcm[pos:])
			pos += n
			clear(out[n:want])
			if pos == len(pcm) {
				finished.Do(func() { close(done) })
			}
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("[audio] 打开输出设备: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("[audio] 启动输出设备: %w", err)
	}
	defer device.Stop()

	select {
	case <-ctx.Done():
		logger.Debugf("[audio] 播放被取消")
		return ctx.Err()
	case <-done:
		logger.Debugf("[audio] 播放完成 (%d 个样本, %d Hz)", len(samples), sampleRate)
		return nil
	}
}

// Close 释放播放上下文。
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}

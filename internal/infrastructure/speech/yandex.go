package speech

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"

	tts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	"NewsForwarder/internal/config"
	"NewsForwarder/internal/ports"
)

const (
	defaultEndpoint = "tts.api.cloud.yandex.net:443"
	defaultVoice    = "filipp"
	defaultSpeed    = 1.1
)

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// YandexSynthesizer streams WAV speech from SpeechKit v3.
type YandexSynthesizer struct {
	client tts.SynthesizerClient
	tokens tokenSource
	voice  string
	speed  float64
	conn   *grpc.ClientConn
	logger *slog.Logger
}

var _ ports.SpeechSynthesizer = (*YandexSynthesizer)(nil)

// NewYandexSynthesizer dials the TTS endpoint over TLS.
func NewYandexSynthesizer(cfg config.SpeechConfig, tokens tokenSource, logger *slog.Logger) (*YandexSynthesizer, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	if err != nil {
		return nil, fmt.Errorf("dial tts: %w", err)
	}

	s := newSynthesizer(tts.NewSynthesizerClient(conn), tokens, cfg, logger)
	s.conn = conn
	return s, nil
}

func newSynthesizer(client tts.SynthesizerClient, tokens tokenSource, cfg config.SpeechConfig, logger *slog.Logger) *YandexSynthesizer {
	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoice
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = defaultSpeed
	}
	return &YandexSynthesizer{client: client, tokens: tokens, voice: voice, speed: speed, logger: logger}
}

// Close releases the gRPC connection.
func (s *YandexSynthesizer) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Synthesize writes the WAV rendition of text to out.
func (s *YandexSynthesizer) Synthesize(ctx context.Context, text string, out io.Writer) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	stream, err := s.client.UtteranceSynthesis(ctx, s.request(text))
	if err != nil {
		return fmt.Errorf("utterance synthesis: %w", err)
	}

	written := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("receive audio: %w", err)
		}
		chunk := resp.GetAudioChunk().GetData()
		if _, err := out.Write(chunk); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		written += len(chunk)
	}

	if written == 0 {
		return fmt.Errorf("utterance synthesis: empty audio")
	}
	if s.logger != nil {
		s.logger.Debug("speech synthesized", "bytes", written)
	}
	return nil
}

func (s *YandexSynthesizer) request(text string) *tts.UtteranceSynthesisRequest {
	return &tts.UtteranceSynthesisRequest{
		Utterance: &tts.UtteranceSynthesisRequest_Text{Text: text},
		OutputAudioSpec: &tts.AudioFormatOptions{
			AudioFormat: &tts.AudioFormatOptions_ContainerAudio{
				ContainerAudio: &tts.ContainerAudio{ContainerAudioType: tts.ContainerAudio_WAV},
			},
		},
		Hints: []*tts.Hints{
			{Hint: &tts.Hints_Voice{Voice: s.voice}},
			{Hint: &tts.Hints_Speed{Speed: s.speed}},
		},
		LoudnessNormalizationType: tts.UtteranceSynthesisRequest_LUFS,
		UnsafeMode:                true,
	}
}

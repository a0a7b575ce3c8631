package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/skillprobe/internal/interview"
	"github.com/MrWong99/skillprobe/internal/live"
	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/pkg/audio"
)

// Event types pushed to live clients.
const (
	EventStatus     = "status"
	EventTranscript = "transcript"
	EventError      = "error"
	EventReport     = "report"
)

const writeTimeout = 5 * time.Second

// Event is one server-to-client message on the live stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type statusEvent struct {
	SessionID       string             `json:"session_id"`
	State           string             `json:"state"`
	QuestionIndex   int                `json:"question_index"`
	Question        string             `json:"question"`
	Progress        interview.Progress `json:"progress"`
	DeadlineSeconds float64            `json:"deadline_seconds,omitempty"`
	Codec           string             `json:"codec"`
	SampleRate      int                `json:"sample_rate"`
	Channels        int                `json:"channels"`
}

type errorEvent struct {
	Message string `json:"message"`
}

// controlMessage is a text frame sent by the client.
type controlMessage struct {
	Type string `json:"type"`
}

// streamFormat describes the binary frames a client sends.
type streamFormat struct {
	codec      string
	sampleRate int
	channels   int
}

func parseStreamFormat(r *http.Request) (streamFormat, error) {
	q := r.URL.Query()
	f := streamFormat{codec: q.Get("codec"), channels: 1}
	if f.codec == "" {
		f.codec = "pcm16"
	}
	switch f.codec {
	case "pcm16":
		f.sampleRate = 16000
	case "opus":
		f.sampleRate = audio.OpusSampleRate
	default:
		return f, fmt.Errorf("%w: unsupported codec %q (want pcm16 or opus)", interview.ErrInvalidArgument, f.codec)
	}
	if v := q.Get("sample_rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 8000 || n > 192000 {
			return f, fmt.Errorf("%w: invalid sample_rate %q", interview.ErrInvalidArgument, v)
		}
		if f.codec == "opus" && n != audio.OpusSampleRate {
			return f, fmt.Errorf("%w: opus streams are decoded at %d Hz", interview.ErrInvalidArgument, audio.OpusSampleRate)
		}
		f.sampleRate = n
	}
	if v := q.Get("channels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 2 {
			return f, fmt.Errorf("%w: invalid channels %q", interview.ErrInvalidArgument, v)
		}
		f.channels = n
	}
	return f, nil
}

// handleLive handles GET /interview/live/{sessionId}. Binary frames carry
// audio; a {"type":"stop"} text frame or closing the socket ends the
// interview. The stream also ends on the harness deadline or once every
// skill is confirmed. The final report is sent before the server closes.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionId")
	sess, err := s.cfg.Manager.Session(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sess.State() == interview.StateCompleted {
		writeError(w, r, fmt.Errorf("%w: %s", interview.ErrAlreadyCompleted, id))
		return
	}
	format, err := parseStreamFormat(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var decoder *audio.OpusDecoder
	if format.codec == "opus" {
		if decoder, err = audio.NewOpusDecoder(format.channels); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", interview.ErrInvalidArgument, err))
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.OriginPatterns})
	if err != nil {
		// Accept has already written the HTTP error.
		observe.Logger(r.Context()).Warn("live: websocket accept failed", "session_id", id, "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxLiveMessageBytes)

	ctx := r.Context()
	log := observe.Logger(ctx).With("session_id", id)
	if m := s.cfg.Metrics; m != nil {
		m.LiveStreams.Add(ctx, 1)
		defer m.LiveStreams.Add(context.WithoutCancel(ctx), -1)
	}

	send := func(typ string, data any) {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if err := wsjson.Write(wctx, conn, Event{Type: typ, Data: data}); err != nil {
			log.Debug("live: write event failed", "type", typ, "err", err)
		}
	}

	harness, err := live.New(s.cfg.Live, func(hctx context.Context, chunk audio.Chunk) bool {
		res, err := s.cfg.Manager.Ingest(hctx, id, chunk)
		switch {
		case errors.Is(err, interview.ErrAlreadyCompleted), errors.Is(err, interview.ErrNotFound):
			return true
		case err != nil:
			send(EventError, errorEvent{Message: err.Error()})
			return false
		}
		if res.Message == "" {
			send(EventTranscript, res)
		}
		return res.Completed
	})
	if err != nil {
		send(EventError, errorEvent{Message: err.Error()})
		conn.Close(websocket.StatusInternalError, "stream setup failed")
		return
	}

	status := statusEvent{
		SessionID:     id,
		State:         sess.State().String(),
		QuestionIndex: sess.CurrentQuestion(),
		Question:      sess.Question(sess.CurrentQuestion()),
		Codec:         format.codec,
		SampleRate:    format.sampleRate,
		Channels:      format.channels,
	}
	if d := s.cfg.Live.Deadline; d > 0 {
		status.DeadlineSeconds = d.Seconds()
	} else if d == 0 {
		status.DeadlineSeconds = live.DefaultDeadline.Seconds()
	}
	if snap, err := s.cfg.Manager.Status(id); err == nil {
		status.Progress = interview.Progress{
			Detected:   snap.DetectedCount,
			Total:      snap.TotalSkills,
			Percentage: snap.ProgressPercentage,
		}
	}
	send(EventStatus, status)
	log.Info("live stream started", "codec", format.codec, "sample_rate", format.sampleRate, "channels", format.channels)

	var g errgroup.Group
	g.Go(func() error {
		reason, err := harness.Run(ctx)
		if err != nil {
			return err
		}
		report, err := s.cfg.Manager.Finish(ctx, id, completionReason(reason))
		switch {
		case errors.Is(err, interview.ErrNotFound):
			send(EventError, errorEvent{Message: "session was completed elsewhere"})
		case err != nil:
			send(EventError, errorEvent{Message: err.Error()})
		default:
			send(EventReport, report)
		}
		log.Info("live stream finished",
			"reason", reason,
			"chunks", harness.Chunks(),
			"frames_dropped", harness.Dropped(),
		)
		return conn.Close(websocket.StatusNormalClosure, "interview complete")
	})
	g.Go(func() error {
		s.readFrames(ctx, conn, harness, format, decoder)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Debug("live stream closed", "err", err)
	}
}

// readFrames feeds client frames into harness until the socket closes or
// the client asks to stop.
func (s *Server) readFrames(ctx context.Context, conn *websocket.Conn, harness *live.Harness, format streamFormat, decoder *audio.OpusDecoder) {
	defer harness.Stop()
	log := observe.Logger(ctx)

	var offset time.Duration
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !harness.Stopped() {
				log.Debug("live: read ended", "err", err)
			}
			return
		}

		if typ == websocket.MessageText {
			var msg controlMessage
			if json.Unmarshal(data, &msg) == nil && msg.Type == "stop" {
				return
			}
			continue
		}

		frame := audio.AudioFrame{Data: data, SampleRate: format.sampleRate, Channels: format.channels}
		if decoder != nil {
			if frame, err = decoder.Decode(data); err != nil {
				log.Debug("live: dropping undecodable opus packet", "err", err)
				continue
			}
		}
		frame.Timestamp = offset
		offset += frame.Duration()
		harness.Capture(frame)
	}
}

func completionReason(r live.StopReason) interview.CompletionReason {
	switch r {
	case live.StopDeadline:
		return interview.ReasonDeadline
	case live.StopHandler:
		return interview.ReasonCoverage
	default:
		return interview.ReasonManual
	}
}

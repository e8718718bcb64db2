package netprobe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grovetools/booth/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandProber(t *testing.T) {
	builder := command.NewSafeBuilder()

	tests := []struct {
		name       string
		ping       []string
		ssid       []string
		wantOnline bool
		wantSSID   string
		wantErr    bool
	}{
		{"reply", []string{"true", "{host}", "{timeout}"}, []string{"echo", "booth-wifi"}, true, "booth-wifi", false},
		{"no reply", []string{"false", "{host}"}, []string{"echo", "booth-wifi"}, false, "", false},
		{"wired", []string{"true", "{host}"}, []string{"false"}, true, "", false},
		{"no ssid command", []string{"true", "{host}"}, nil, true, "", false},
		{"missing binary", []string{"/nonexistent/ping", "{host}"}, nil, false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewCommandProber(builder, "8.8.8.8", tt.ssid)
			p.PingCommand = tt.ping

			online, ssid, err := p.Probe(context.Background())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantOnline, online)
			assert.Equal(t, tt.wantSSID, ssid)
		})
	}
}

func TestCommandProberRejectsBadHost(t *testing.T) {
	p := NewCommandProber(command.NewSafeBuilder(), "-f", nil)
	p.PingCommand = []string{"true", "{host}"}
	_, _, err := p.Probe(context.Background())
	assert.Error(t, err)
}

func TestCommandProberHonorsContext(t *testing.T) {
	p := NewCommandProber(command.NewSafeBuilder(), "8.8.8.8", nil)
	p.PingCommand = []string{"sleep", "5", "{host}"}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	online, _, err := p.Probe(ctx)
	assert.False(t, online)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestTCPProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := NewTCPProber(command.NewSafeBuilder(), ln.Addr().String(), []string{"echo", "booth-wifi"})
	online, ssid, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, "booth-wifi", ssid)

	addr := ln.Addr().String()
	ln.Close()

	online, ssid, err = NewTCPProber(nil, addr, nil).Probe(context.Background())
	require.NoError(t, err, "refused connection is an offline answer")
	assert.False(t, online)
	assert.Empty(t, ssid)
}

func TestReplySeconds(t *testing.T) {
	assert.Equal(t, 3, replySeconds(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5500*time.Millisecond)
	defer cancel()
	assert.Equal(t, 5, replySeconds(ctx))

	short, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	assert.Equal(t, 1, replySeconds(short))
}

package camera

import (
	"context"
	"net"
	"testing"

	"github.com/matryer/is"
)

func TestStreamHostResolvesDefaultPorts(t *testing.T) {
	is := is.New(t)

	tests := []struct {
		addr string
		host string
		ok   bool
	}{
		{"0", "", false},
		{"/dev/video0", "", false},
		{"file:///tmp/clip.mp4", "", false},
		{"rtsp://cam.local/stream1", "cam.local:554", true},
		{"rtsp://admin:pw@cam.local:8554/stream1", "cam.local:8554", true},
		{"http://10.0.0.4/mjpg/video.mjpg", "10.0.0.4:80", true},
		{"https://cam.local/live", "cam.local:443", true},
	}

	for _, tt := range tests {
		host, ok, err := streamHost(tt.addr)
		is.NoErr(err)
		is.Equal(host, tt.host)
		is.Equal(ok, tt.ok)
	}
}

func TestCheckReachableDialsListeningHost(t *testing.T) {
	is := is.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	is.NoErr(checkReachable(context.Background(), "rtsp://"+ln.Addr().String()+"/stream"))
}

func TestCheckReachableFailsForClosedPort(t *testing.T) {
	is := is.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	addr := ln.Addr().String()
	ln.Close()

	is.True(checkReachable(context.Background(), "rtsp://"+addr+"/stream") != nil)
}

func TestCheckReachableSkipsLocalDevices(t *testing.T) {
	is := is.New(t)
	is.NoErr(checkReachable(context.Background(), "0"))
}

func TestOpenCVBackendReportsUnreachableStream(t *testing.T) {
	is := is.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	addr := ln.Addr().String()
	ln.Close()

	g, err := OpenCV().Connect(context.Background(), "rtsp://"+addr+"/stream", frameDims(4, 4), 30)
	is.True(err != nil)
	is.True(g == nil)
}

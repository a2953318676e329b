// network.go

// Copyright (C) 2019  Boris Gromov

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package tello

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

const (
	defaultTelloAddr        = "192.168.10.1"
	defaultTelloControlPort = 8889
	defaultTelloVideoPort   = 6038 // announced in the handshake for out-of-band streams

	defaultTimeout = 2 * time.Second
)

// ErrAlreadyConnected is returned by Connect when a connection is active.
var ErrAlreadyConnected = errors.New("tello: already connected")

// ConnectionState describes the control link to the drone.
type ConnectionState int

// Connection states.
const (
	ConnectionDisconnected ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionTimedOut
	ConnectionError
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionTimedOut:
		return "timedout"
	case ConnectionError:
		return "error"
	}
	return "invalid"
}

// msgHandler is invoked with each inbound packet of a registered message ID.
type msgHandler func(pkt packet)

// link owns the UDP control socket: the conn_req/conn_ack handshake, the
// receive loop with its timeout watchdog, and per-message-ID dispatch.
// Expiry of the watchdog tears the socket down and re-enters the handshake,
// indefinitely, until disconnect is called.
type link struct {
	mu       sync.Mutex
	conn     *net.UDPConn
	host     string
	port     int
	timeout  time.Duration
	validate bool
	seq      uint16
	stop     chan struct{}

	handlers map[uint16]msgHandler
	state    *Sensor[ConnectionState]

	// facade hooks, used to pause/resume the keep-alive sender
	onConnected func()
	onSuspended func()
}

func newLink() *link {
	l := &link{
		timeout:  defaultTimeout,
		handlers: make(map[uint16]msgHandler),
		state:    NewDedupSensor[ConnectionState](),
	}
	l.state.Publish(ConnectionDisconnected)
	return l
}

// handle registers h for a message ID.  All registrations happen before
// connect, on the construction path.
func (l *link) handle(id uint16, h msgHandler) {
	l.handlers[id] = h
}

// connect dials the drone, starts the receive loop and sends the handshake.
// The state channel reports the rest of the connection lifecycle.
func (l *link) connect(host string, port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return ErrAlreadyConnected
	}
	conn, err := dialDrone(host, port)
	if err != nil {
		l.state.Publish(ConnectionError)
		return err
	}
	l.host = host
	l.port = port
	l.conn = conn
	l.stop = make(chan struct{})
	l.state.Publish(ConnectionConnecting)
	l.sendConnReqLocked()
	go l.recvLoop(conn, l.stop)
	return nil
}

// disconnect stops the receive loop and closes the socket.  The link can be
// connected again afterwards.
func (l *link) disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	if l.onSuspended != nil {
		l.onSuspended()
	}
	l.state.Publish(ConnectionDisconnected)
}

func dialDrone(host string, port int) (*net.UDPConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	// the local port is assigned by the OS
	return net.DialUDP("udp", nil, raddr)
}

// sendConnReqLocked emits the ASCII handshake announcing the port the drone
// should stream to.
func (l *link) sendConnReqLocked() {
	msgBuff := []byte("conn_req:lh")
	binary.LittleEndian.PutUint16(msgBuff[9:], defaultTelloVideoPort)
	if _, err := l.conn.Write(msgBuff); err != nil {
		log.Warnf("Failed to send conn_req - %v", err)
	}
}

// send frames and transmits a packet, assigning the next sequence number.
// While the link is not connected, sends are dropped silently.
func (l *link) send(pkt packet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, _ := l.state.Last(); st != ConnectionConnected || l.conn == nil {
		log.Debugf("Dropping send of message %#x while %v", pkt.messageID, st)
		return
	}
	l.seq++
	pkt.sequence = l.seq
	if _, err := l.conn.Write(packetToBuffer(pkt)); err != nil {
		log.Warnf("Network write error - %v", err)
	}
}

// recvLoop reads datagrams until the link is stopped.  Each read doubles as
// the timeout watchdog: a deadline expiry destroys the socket and re-enters
// the handshake.
func (l *link) recvLoop(conn *net.UDPConn, stop chan struct{}) {
	buff := make([]byte, 4096)
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = 0 // reconnect forever

	for {
		select {
		case <-stop:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(l.timeout))
		n, err := conn.Read(buff)

		select {
		case <-stop:
			return
		default:
		}

		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				log.Infof("No data from drone within %v, reconnecting", l.timeout)
				l.state.Publish(ConnectionTimedOut)
			} else if errors.Is(err, net.ErrClosed) {
				return
			} else {
				log.Warnf("Network read error - %v", err)
				l.state.Publish(ConnectionError)
			}
			if l.onSuspended != nil {
				l.onSuspended()
			}
			conn = l.redial(stop, bo)
			if conn == nil {
				return
			}
			continue
		}

		bo.Reset()
		l.dispatch(buff[:n])
	}
}

// redial replaces the socket and restarts the handshake, backing off between
// attempts.  Returns nil when the link has been stopped.
func (l *link) redial(stop chan struct{}, bo backoff.BackOff) *net.UDPConn {
	for {
		select {
		case <-stop:
			return nil
		case <-time.After(bo.NextBackOff()):
		}

		l.mu.Lock()
		if l.conn == nil { // disconnected under us
			l.mu.Unlock()
			return nil
		}
		l.conn.Close()
		conn, err := dialDrone(l.host, l.port)
		if err != nil {
			l.mu.Unlock()
			log.Warnf("Redial failed - %v", err)
			continue
		}
		l.conn = conn
		l.state.Publish(ConnectionConnecting)
		l.sendConnReqLocked()
		l.mu.Unlock()
		return conn
	}
}

// dispatch routes one inbound datagram: framed packets go to the registered
// handler for their message ID, everything else is given an ASCII reading.
func (l *link) dispatch(data []byte) {
	if len(data) > 0 && data[0] == msgHdr {
		pkt, err := bufferToPacket(data)
		if err != nil {
			log.Warnf("Dropping malformed packet - %v", err)
			return
		}
		if l.validate {
			if err := validatePacket(data, pkt); err != nil {
				log.Warnf("Dropping packet with bad CRC for message %#x", pkt.messageID)
				return
			}
		}
		l.mu.Lock()
		h := l.handlers[pkt.messageID]
		l.mu.Unlock()
		if h == nil {
			log.Debugf("Unknown message type from Tello <%d>", pkt.messageID)
			return
		}
		h(pkt)
		return
	}

	switch {
	case bytes.HasPrefix(data, []byte("conn_ack:")):
		log.Debugf("conn_ack received, buffer len: %d", len(data))
		l.state.Publish(ConnectionConnected)
		if l.onConnected != nil {
			l.onConnected()
		}
	case bytes.HasPrefix(data, []byte("unknown command:")):
		log.Warnf("Drone rejected command <%s>", data)
	default:
		log.Warnf("Unexpected network message from Tello <%v>", data)
	}
}

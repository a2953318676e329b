// tellogo is a small demonstration driver: it connects to a Tello, takes off,
// optionally flies to a point, and lands.

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

package main

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	tello "github.com/bgromov/tellogo"
)

var (
	host     string
	port     int
	hover    time.Duration
	targetX  float64
	targetZ  float64
	withGoTo bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "tellogo",
	Short: "Fly a short demonstration flight with a Tello drone",
	RunE:  fly,
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "192.168.10.1", "drone address")
	rootCmd.Flags().IntVar(&port, "port", 8889, "drone control port")
	rootCmd.Flags().DurationVar(&hover, "hover", 5*time.Second, "how long to hover before landing")
	rootCmd.Flags().Float64Var(&targetX, "x", 0, "forward displacement to fly to, metres")
	rootCmd.Flags().Float64Var(&targetZ, "z", 0, "height to fly to, metres")
	rootCmd.Flags().BoolVar(&withGoTo, "goto", false, "fly to (--x, --z) before landing")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func fly(cmd *cobra.Command, args []string) error {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	drone := tello.NewTello()
	defer drone.Close()

	connected := make(chan struct{}, 1)
	sub := drone.ConnectionState().Subscribe(func(s tello.ConnectionState) {
		log.Infof("Connection state: %v", s)
		if s == tello.ConnectionConnected {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})
	defer sub.Cancel()

	drone.FlightData().Subscribe(func(fd tello.FlightData) {
		log.Debugf("Battery: %d%%, height: %.1fm", fd.BatteryPercentage, float64(fd.Height)/10)
	})
	drone.FlightState().Subscribe(func(s tello.FlightState) {
		log.Infof("Flight state: %v", s)
	})

	if err := drone.Connect(host, port); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	select {
	case <-connected:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("no conn_ack from drone at %s:%d", host, port)
	}

	drone.TakeOff()
	time.Sleep(5 * time.Second)

	if withGoTo {
		drone.SetOriginToVo()
		drone.GoTo(tello.Float(targetX), nil, tello.Float(targetZ), nil)
		waitConverged(drone, 30*time.Second)
		drone.Hover()
	}

	time.Sleep(hover)
	drone.Land()
	time.Sleep(3 * time.Second)
	return nil
}

func waitConverged(drone *tello.Tello, timeout time.Duration) {
	done := make(chan struct{}, 1)
	sub := drone.Controller().State().Subscribe(func(s tello.ControllerState) {
		if s.Kind == tello.StateConverged {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	defer sub.Cancel()

	select {
	case <-done:
		log.Info("Target reached")
	case <-time.After(timeout):
		log.Warn("Gave up waiting for convergence")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

/*Package tello provides an unofficial, standalone client for the Ryze Tello® drone,
including a host-side position controller driven by the drone's flight-log telemetry.

Disclaimer

Tello is a registered trademark of Ryze Tech.  The author(s) of this package is/are in no way affiliated with Ryze, DJI, or Intel.
The package has been developed by gathering together information from a variety of sources on the Internet
(especially the generous contributors at https://tellopilots.com), and by examining data packets sent to/from the Tello.

Use this package at your own risk.  The author(s) is/are in no way responsible for any damage caused either to or by the
drone when using this software.

Features

The following features have been implemented...
  * Binary wire protocol: framing, CRC validation, connection handshake and timeout-driven reconnect
  * Flight-log decoding: MVO, VO and IMU odometry plus ultrasonic height, delivered on sensor channels
  * Stick-based flight control at a fixed keep-alive cadence
  * Drone built-in flight commands, eg. TakeOff(), PalmLand(), Flip()
  * A four-axis PID position controller: GoTo(), GoToYaw(), origin management

Concepts

Sensor Channels

All telemetry fans out through sensor channels: a last-value cell combined with a
change stream.  Subscribe for updates, or read the latest value at any time.
Subscribers are invoked on the decoding goroutine and must not block; consumers
needing to do real work should hand the value off to their own goroutine.

Coordinate Frame

The library's canonical frame is X forward, Y left, Z up.  The drone reports
odometry with Z down; all vectors, covariances and orientations are rotated into
the canonical frame before being published.

Position Control

The controller closes the loop on the host: it subscribes to a position source and
an orientation source, runs one PID per axis (x, y, z, yaw), and feeds the result
to the keep-alive stick sender.  Targets are sparse, so GoTo can command any subset
of axes.  An origin pose decouples the controller's frame from the odometry source's.
*/
package tello

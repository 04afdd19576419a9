// Package ydlidar drives a YDLidar G2 over its serial protocol. Multi-byte
// fields on the wire are little endian.
package ydlidar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

var (
	errReadTimeout = errors.New("serial read timed out")
	errBadPacket   = errors.New("bad scan packet")
)

// maxResponseSize bounds single response payloads (device info is 20 bytes).
const maxResponseSize = 64

// NewLidar returns a YDLidar object.
func NewLidar(devicePort Port) *YDLidar {
	return &YDLidar{
		SerialPort: devicePort,
		Packets:    make(chan Packet),
		Stop:       make(chan struct{}),
	}
}

// GetSerialPort returns a real serial port connection at 230400 8N1.
// When ttyPort is nil or empty the last enumerated port is used.
func GetSerialPort(ttyPort *string) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: 230400,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	var name string
	if ttyPort != nil && *ttyPort != "" {
		name = *ttyPort
	} else {
		ports, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", err)
		}
		if len(ports) == 0 {
			return nil, errors.New("no serial ports found")
		}
		glog.V(1).Infof("Serial ports: %v", ports)
		name = ports[len(ports)-1]
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	glog.Infof("Connected to port: %v", name)
	return port, nil
}

// SetDTR enables the DTR control for serial which controls the motor enable function.
func (lidar *YDLidar) SetDTR(s bool) error {
	return lidar.SerialPort.SetDTR(s)
}

// DeviceInfo returns the version information.
func (lidar *YDLidar) DeviceInfo() (*DeviceInfo, error) {
	data, err := lidar.request(deviceInfo, InfoTypeCode)
	if err != nil {
		return nil, fmt.Errorf("device info: %w", err)
	}
	if len(data) < 20 {
		return nil, fmt.Errorf("device info: not enough bytes. Expected 20 got %v", len(data))
	}

	info := &DeviceInfo{
		Model:    data[0],
		Hardware: data[3],
	}
	copy(info.Firmware[:], data[1:3])
	copy(info.Serial[:], data[4:20])
	return info, nil
}

// HealthInfo returns nil if the lidar is operating optimally.
func (lidar *YDLidar) HealthInfo() error {
	data, err := lidar.request(healthStatus, HealthTypeCode)
	if err != nil {
		return fmt.Errorf("health info: %w", err)
	}
	if len(data) < 3 {
		return fmt.Errorf("health info: not enough bytes. Expected 3 got %v", len(data))
	}
	if data[0] != 0 {
		return fmt.Errorf("device problem. Status: %x Error Code: %x %x", data[0], data[1], data[2])
	}
	return nil
}

// request sends a single-response command and returns the payload.
func (lidar *YDLidar) request(cmd, wantType byte) ([]byte, error) {
	if _, err := lidar.SerialPort.Write([]byte{preCommand, cmd}); err != nil {
		return nil, err
	}

	size, typeCode, mode, err := lidar.readResponseHeader()
	if err != nil {
		return nil, err
	}
	if typeCode != wantType {
		return nil, fmt.Errorf("invalid type code. Expected %x, got %x. Mode: %x", wantType, typeCode, mode)
	}
	if size > maxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes", size)
	}

	data := make([]byte, size)
	if err := lidar.readFull(data); err != nil {
		return nil, fmt.Errorf("failed to read serial: %w", err)
	}
	return data, nil
}

// readResponseHeader reads and validates the 7 byte command response header:
// start sign 0xA5 0x5A, 30 bit length and 2 bit mode, type code.
func (lidar *YDLidar) readResponseHeader() (size uint32, typeCode byte, mode byte, err error) {
	header := make([]byte, responseHeaderSize)
	if err := lidar.readFull(header); err != nil {
		return 0, 0, 0, fmt.Errorf("read header: %w", err)
	}

	if header[0] != preCommand || header[1] != 0x5A {
		return 0, 0, 0, fmt.Errorf("invalid header. Expected start sign 0xA5 0x5A got %#x %#x", header[0], header[1])
	}

	word := binary.LittleEndian.Uint32(header[2:6])
	size = word & 0x3FFFFFFF
	mode = byte(word >> 30)
	typeCode = header[6]

	glog.V(2).Infof("Response header %X size:%v type:%x mode:%x", header, size, typeCode, mode)
	return size, typeCode, mode, nil
}

// readFull reads exactly len(buf) bytes. A read returning no data is a timeout.
func (lidar *YDLidar) readFull(buf []byte) error {
	for off := 0; off < len(buf); {
		n, err := lidar.SerialPort.Read(buf[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return errReadTimeout
		}
		off += n
	}
	return nil
}

// StartScan sends the scan command, checks the response and starts the
// acquisition loop. Packets arrive on lidar.Packets until StopScan is called
// or the port fails.
func (lidar *YDLidar) StartScan() error {
	if _, err := lidar.SerialPort.Write([]byte{preCommand, startScanning}); err != nil {
		return fmt.Errorf("failed to start scan: %w", err)
	}

	// The scan response never ends, so its length is meaningless.
	_, typeCode, mode, err := lidar.readResponseHeader()
	switch {
	case err != nil:
		return fmt.Errorf("read header failed: %w", err)
	case typeCode != ScanTypeCode:
		return fmt.Errorf("invalid type code. Expected %x, got %x. Mode: %x", ScanTypeCode, typeCode, mode)
	case mode != ContinuousResponse:
		return fmt.Errorf("expected continuous response mode, got %x", mode)
	}

	glog.Info("Scan command response: GOOD")
	go lidar.scan()
	return nil
}

// scan reads packets until stopped or the port fails.
func (lidar *YDLidar) scan() {
	defer close(lidar.Packets)

	for {
		select {
		case <-lidar.Stop:
			return
		default:
		}

		pkt, err := lidar.readPacket()
		switch {
		case errors.Is(err, errReadTimeout):
			continue
		case errors.Is(err, errBadPacket):
			n := lidar.dropped.Add(1)
			glog.Warningf("Dropping scan packet (%d so far): %v", n, err)
			continue
		case err != nil:
			lidar.send(Packet{Error: fmt.Errorf("failed to read serial: %w", err)})
			return
		}

		if !lidar.send(pkt) {
			return
		}
	}
}

// send delivers p unless the scan is being stopped.
func (lidar *YDLidar) send(p Packet) bool {
	select {
	case lidar.Packets <- p:
		return true
	case <-lidar.Stop:
		return false
	}
}

// Dropped returns the number of packets discarded for a bad check code or header.
func (lidar *YDLidar) Dropped() uint64 {
	return lidar.dropped.Load()
}

func (lidar *YDLidar) readPacket() (Packet, error) {
	raw, err := lidar.syncPacketHeader()
	if err != nil {
		return Packet{}, err
	}

	var header pointCloudHeader
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &header); err != nil {
		return Packet{}, fmt.Errorf("%w: failed to unpack header: %v", errBadPacket, err)
	}
	if header.SampleQuantity == 0 {
		return Packet{}, fmt.Errorf("%w: no samples", errBadPacket)
	}

	samples := make([]byte, int(header.SampleQuantity)*bytesPerSample)
	if err := lidar.readFull(samples); err != nil {
		return Packet{}, err
	}

	if cs := checkCode(raw, samples); cs != header.CheckCode {
		return Packet{}, fmt.Errorf("%w: check code %#04x, header says %#04x", errBadPacket, cs, header.CheckCode)
	}
	return decodePacket(header, samples), nil
}

// syncPacketHeader discards bytes up to the 0x55AA packet sign and returns
// the complete header.
func (lidar *YDLidar) syncPacketHeader() ([]byte, error) {
	raw := make([]byte, scanPacketHeaderSize)

	var prev byte
	for skipped := 0; ; skipped++ {
		if err := lidar.readFull(raw[:1]); err != nil {
			return nil, err
		}
		if prev == packetSignLow && raw[0] == packetSignHigh {
			if skipped > 1 {
				glog.V(2).Infof("Skipped %d bytes before packet header", skipped-1)
			}
			break
		}
		prev = raw[0]
	}

	raw[0], raw[1] = packetSignLow, packetSignHigh
	if err := lidar.readFull(raw[2:]); err != nil {
		return nil, err
	}
	return raw, nil
}

func decodePacket(h pointCloudHeader, samples []byte) Packet {
	n := int(h.SampleQuantity)
	p := Packet{
		Distances:   make([]uint16, n),
		Intensities: make([]uint16, n),
		ZeroPacket:  h.PackageType&0x01 == 1,
	}
	for i := 0; i < n; i++ {
		p.Distances[i], p.Intensities[i] = decodeSample(samples[i*bytesPerSample : (i+1)*bytesPerSample])
	}
	if p.ZeroPacket {
		p.ScanFrequency = float32(h.PackageType>>1) / 10
	}
	p.FirstAngle, p.LastAngle, p.DeltaAngle = CalculateAngles(p.Distances, h.StartAngle, h.EndAngle)

	glog.V(3).Infof("Packet zero:%v samples:%d angles:%.2f-%.2f", p.ZeroPacket, n, p.FirstAngle, p.LastAngle)
	return p
}

// decodeSample splits a 3 byte sample into distance [mm] and intensity.
// Intensity is the first byte plus the low two bits of the second; distance
// is the high six bits of the second byte plus the third byte shifted by 6.
func decodeSample(s []byte) (dist, intensity uint16) {
	intensity = uint16(s[0]) | uint16(s[1]&0x03)<<8
	dist = uint16(s[2])<<6 | uint16(s[1])>>2
	return dist, intensity
}

// checkCode XORs the packet's 16 bit words: PH, FSA, every sample (the
// intensity byte zero extended, then the distance word), CT|LSN and LSA.
func checkCode(header, samples []byte) uint16 {
	cs := binary.LittleEndian.Uint16(header[0:2])
	cs ^= binary.LittleEndian.Uint16(header[4:6])
	for i := 0; i+bytesPerSample <= len(samples); i += bytesPerSample {
		cs ^= uint16(samples[i])
		cs ^= binary.LittleEndian.Uint16(samples[i+1 : i+3])
	}
	cs ^= binary.LittleEndian.Uint16(header[2:4])
	cs ^= binary.LittleEndian.Uint16(header[6:8])
	return cs
}

// Points returns one reading per sample, with angles interpolated between the
// packet's first and last sample and wrapped into [0, 360).
func (p Packet) Points() []PointCloud {
	n := len(p.Distances)
	pts := make([]PointCloud, n)
	for i := range pts {
		angle := p.FirstAngle
		if n > 1 {
			angle += p.DeltaAngle / float32(n-1) * float32(i)
		}
		if angle >= 360 {
			angle -= 360
		}
		pts[i] = PointCloud{Angle: angle, Dist: p.Distances[i], Intensity: p.Intensities[i]}
	}
	return pts
}

// CalculateAngles returns the corrected first and last sample angles and the
// sweep between them, in degrees.
func CalculateAngles(distances []uint16, startAngle, endAngle uint16) (first, last, delta float32) {
	if len(distances) == 0 {
		return 0, 0, 0
	}
	first = rawAngle(startAngle) + angleCorrection(distances[0])
	last = rawAngle(endAngle) + angleCorrection(distances[len(distances)-1])

	switch {
	case last > first:
		delta = last - first
	case last < first:
		delta = 360 + last - first
	}
	return first, last, delta
}

// rawAngle converts an FSA/LSA field to degrees. Bit 0 is a check bit.
func rawAngle(a uint16) float32 {
	return float32(a>>1) / 64
}

// angleCorrection calculates the distance dependent angle correction [deg].
func angleCorrection(dist uint16) float32 {
	if dist == 0 {
		return 0
	}
	return float32(180 / math.Pi * math.Atan(21.8*(155.3-float64(dist))/(155.3*float64(dist))))
}

// StopScan stops the lidar scan and ends the acquisition loop.
func (lidar *YDLidar) StopScan() error {
	glog.Info("Stopping scan")
	lidar.stopOnce.Do(func() { close(lidar.Stop) })

	if _, err := lidar.SerialPort.Write([]byte{preCommand, stopScanning}); err != nil {
		return fmt.Errorf("failed to stop scan: %w", err)
	}
	return lidar.SerialPort.ResetInputBuffer()
}

// Reboot soft reboots the lidar.
func (lidar *YDLidar) Reboot() error {
	if _, err := lidar.SerialPort.Write([]byte{preCommand, restartDevice}); err != nil {
		return fmt.Errorf("failed to send reboot command: %w", err)
	}
	return nil
}

// Close will shut down the connection.
func (lidar *YDLidar) Close() error {
	return lidar.SerialPort.Close()
}

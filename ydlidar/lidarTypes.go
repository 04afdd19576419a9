package ydlidar

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

//go:generate mockgen -destination=mocks/mock_port.go -package=mocks laserpoi/ydlidar Port

// Port is the part of go.bug.st/serial.Port the driver uses.
type Port interface {
	io.ReadWriteCloser
	SetDTR(dtr bool) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// YDLidar is the lidar object.
type YDLidar struct {
	SerialPort Port
	Packets    chan Packet   // Closed when the scan loop exits.
	Stop       chan struct{} // Closed by StopScan.

	stopOnce sync.Once
	dropped  atomic.Uint64
}

const (
	// preCommand is the command to send before sending any other command.
	preCommand = 0xA5

	// healthStatus is the command to get the health status.
	healthStatus = 0x92

	// deviceInfo is the command to get the device information.
	deviceInfo = 0x90

	// restartDevice is the command to soft reboot the device.
	restartDevice = 0x40

	// stopScanning is the command to stop scanning.
	stopScanning = 0x65

	// startScanning is the command to start scanning.
	startScanning = 0x60

	// HealthTypeCode is the device response Health Status type code.
	HealthTypeCode = 0x06

	// InfoTypeCode is the device response Device Information type code.
	InfoTypeCode = 0x04

	// ScanTypeCode is the device response Scan Command type code.
	ScanTypeCode = 0x81

	// ContinuousResponse is the response mode of the scan command.
	ContinuousResponse = 0x1

	// G2 model number reported in DeviceInfo.
	ModelG2 = 15

	// G2 measurement range [m].
	G2RangeMin = 0.12
	G2RangeMax = 12
)

const (
	responseHeaderSize   = 7
	scanPacketHeaderSize = 10
	bytesPerSample       = 3

	// Little endian 0x55AA.
	packetSignLow  = 0xAA
	packetSignHigh = 0x55
)

// PointCloud represents a single lidar reading.
type PointCloud struct {
	Angle     float32 // Degrees.
	Dist      uint16  // Millimeters.
	Intensity uint16
}

// Packet represents a single sample set of readings.
type Packet struct {
	FirstAngle    float32  // Corrected angle of the first sample [deg].
	LastAngle     float32  // Corrected angle of the last sample [deg].
	DeltaAngle    float32  // Sweep between first and last sample [deg].
	Distances     []uint16 // Distance per sample [mm]. 0 means no return.
	Intensities   []uint16 // Intensity per sample.
	ZeroPacket    bool     // Start of a new revolution.
	ScanFrequency float32  // Rotation frequency [Hz], zero packets only.
	Error         error
}

// DeviceInfo contains the device model, firmware, hardware, and serial number.
type DeviceInfo struct {
	Model    byte     // Model number.
	Firmware [2]byte  // Firmware version.
	Hardware byte     // Hardware version.
	Serial   [16]byte // Serial number.
}

// ModelName returns the marketing name for known model numbers.
func (d DeviceInfo) ModelName() string {
	if d.Model == ModelG2 {
		return "G2"
	}
	return fmt.Sprintf("unknown(%d)", d.Model)
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("Model: %v Hardware Version: %v Firmware Version: %v.%v Serial Number: %x",
		d.ModelName(), d.Hardware, d.Firmware[0], d.Firmware[1], d.Serial)
}

// pointCloudHeader is the preamble for the point cloud data.
type pointCloudHeader struct {
	// PacketHeader PH(2B), fixed at 0x55AA, low in front, high in back.
	PacketHeader uint16

	// PackageType CT(1B). Bit 0 is set on the zero (start) packet, bits 7:1
	// carry the scan frequency in 0.1Hz on that packet.
	PackageType uint8

	// SampleQuantity LSN(1B), number of samples in the packet.
	SampleQuantity uint8

	// StartAngle FSA(2B), raw angle of the first sample.
	StartAngle uint16

	// EndAngle LSA(2B), raw angle of the last sample.
	EndAngle uint16

	// CheckCode CS(2B), XOR of the packet's 16-bit words.
	CheckCode uint16
}

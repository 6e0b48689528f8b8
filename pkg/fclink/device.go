package fclink

import (
	"errors"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"

	bugst "go.bug.st/serial"
)

const (
	DevClass_NONE = iota
	DevClass_SERIAL
	DevClass_TCP
	DevClass_UDP
	DevClass_BT
)

var ErrUnsupportedDevice = errors.New("unsupported device")

type DevDescription struct {
	Klass  int
	Name   string
	Param  int
	Name1  string
	Param1 int
}

// Probe returns the first USB / ACM serial port present, or "".
func Probe() string {
	ports, err := bugst.GetPortsList()
	if err == nil {
		for _, p := range ports {
			if strings.Contains(p, "ttyUSB") || strings.Contains(p, "ttyACM") ||
				strings.Contains(p, "usbserial") || strings.Contains(p, "usbmodem") {
				return p
			}
		}
	}
	for _, v := range []string{"/dev/ttyACM0", "/dev/ttyUSB0"} {
		if _, err := os.Stat(v); err == nil {
			return v
		}
	}
	return ""
}

// CheckDevice resolves the device string, probing for a serial port when it
// is empty.
func CheckDevice(device string, baud int) (DevDescription, error) {
	devdesc := ParseDevice(device)
	if devdesc.Name == "" && devdesc.Klass == DevClass_NONE {
		if p := Probe(); p != "" {
			devdesc.Klass = DevClass_SERIAL
			devdesc.Name = p
			devdesc.Param = baud
		}
	}
	if devdesc.Name == "" && devdesc.Param == 0 {
		return devdesc, errors.New("no device given")
	}
	if devdesc.Klass == DevClass_SERIAL && device != "" && !strings.Contains(device, "@") {
		devdesc.Param = baud
	}
	return devdesc, nil
}

const serialHostToken = "__MWP_SERIAL_HOST"

// defaultGateway stands in for serialHostToken: $MWP_SERIAL_HOST if set,
// otherwise the default route's gateway.
func defaultGateway() string {
	if h := os.Getenv("MWP_SERIAL_HOST"); h != "" {
		return h
	}
	for _, c := range []string{
		"ip route show 0.0.0.0/0 | cut -d ' ' -f3",
		"route -n | grep UG | awk '{print $2}'",
		"route -n show  0.0.0.0 | grep gateway | awk '{print $2}'",
	} {
		out, err := exec.Command("sh", "-c", c).Output()
		if err != nil {
			continue
		}
		if h := strings.TrimSpace(string(out)); h != "" {
			return h
		}
	}
	return serialHostToken
}

// splitHostPort is net.SplitHostPort that tolerates a bare host (port -1).
func splitHostPort(s string) (string, int) {
	if s == "" {
		return "", -1
	}
	h, p, err := net.SplitHostPort(s)
	if err != nil {
		return s, -1
	}
	port, _ := strconv.Atoi(p)
	return h, port
}

func isBluetooth(s string) bool {
	return len(s) == 17 && s[2] == ':' && s[8] == ':' && s[14] == ':'
}

// ParseDevice understands
//
//	/dev/ttyUSB0[@baud]
//	tcp://host:port
//	udp://[local]:port[/remote:port]
//	udp://remote:port?bind=port
//	xx:xx:xx:xx:xx:xx (bluetooth)
//
// A host of __MWP_SERIAL_HOST is replaced by $MWP_SERIAL_HOST or the default
// gateway.
func ParseDevice(devstr string) DevDescription {
	switch {
	case devstr == "":
		return DevDescription{}
	case isBluetooth(devstr):
		return DevDescription{Klass: DevClass_BT, Name: devstr}
	}
	u, err := url.Parse(devstr)
	if err != nil {
		return DevDescription{}
	}
	switch u.Scheme {
	case "":
		return serialDevice(u.Path)
	case "tcp":
		return netDevice(DevClass_TCP, u)
	case "udp":
		return netDevice(DevClass_UDP, u)
	}
	return DevDescription{}
}

func serialDevice(path string) DevDescription {
	name, rate, ok := strings.Cut(path, "@")
	dd := DevDescription{Klass: DevClass_SERIAL, Name: name, Param: 115200}
	if ok {
		dd.Param, _ = strconv.Atoi(rate)
	}
	return dd
}

// netDevice fills Name/Param with the primary endpoint and Name1/Param1 with
// the remote one when both are given.
func netDevice(klass int, u *url.URL) DevDescription {
	dd := DevDescription{Klass: klass}
	if bind := u.Query().Get("bind"); bind != "" {
		dd.Param, _ = strconv.Atoi(bind)
		dd.Name1, dd.Param1 = splitHostPort(u.Host)
		return dd
	}
	dd.Name, dd.Param = splitHostPort(u.Host)
	if dd.Name == serialHostToken {
		dd.Name = defaultGateway()
	}
	if host, port, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), ":"); ok {
		dd.Name1 = host
		dd.Param1, _ = strconv.Atoi(port)
	}
	return dd
}

package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"netviz/internal/domain"
)

// SSHOptions configures the SSH probe collector. KeyPath wins over
// Password when both are set.
type SSHOptions struct {
	Hosts    []string
	Port     int
	User     string
	KeyPath  string
	Password string
	Timeout  time.Duration
}

// SSH probes configured hosts over SSH and assembles a snapshot from
// standard Linux commands, including docker containers when the docker
// CLI is present on the host.
type SSH struct {
	opts SSHOptions
}

// NewSSH creates an SSH probe collector
func NewSSH(opts SSHOptions) *SSH {
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return &SSH{opts: opts}
}

// FetchMetrics probes every configured host. Hosts that fail are logged
// and omitted; the fetch as a whole fails only when no host answered.
func (s *SSH) FetchMetrics(ctx context.Context) (domain.MetricsSnapshot, error) {
	if len(s.opts.Hosts) == 0 {
		return nil, errors.New("ssh collector: no hosts configured")
	}

	config, err := s.clientConfig()
	if err != nil {
		return nil, fmt.Errorf("ssh collector: %w", err)
	}

	snapshot := make(domain.MetricsSnapshot)
	var probeErrs []error
	for _, host := range s.opts.Hosts {
		hostname, metrics, err := s.probeHost(ctx, host, config)
		if err != nil {
			log.Printf("ssh probe of %s failed: %v", host, err)
			probeErrs = append(probeErrs, fmt.Errorf("%s: %w", host, err))
			continue
		}
		snapshot[hostname] = metrics
	}

	if len(snapshot) == 0 {
		return nil, fmt.Errorf("ssh collector: all probes failed: %w", errors.Join(probeErrs...))
	}
	return snapshot, nil
}

func (s *SSH) clientConfig() (*ssh.ClientConfig, error) {
	if s.opts.User == "" {
		return nil, errors.New("user is required")
	}

	var auth []ssh.AuthMethod
	switch {
	case s.opts.KeyPath != "":
		key, err := os.ReadFile(s.opts.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case s.opts.Password != "":
		auth = append(auth, ssh.Password(s.opts.Password))
	default:
		return nil, errors.New("key_path or password is required")
	}

	return &ssh.ClientConfig{
		User:            s.opts.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.opts.Timeout,
	}, nil
}

func (s *SSH) probeHost(ctx context.Context, host string, config *ssh.ClientConfig) (string, domain.HostMetrics, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(s.opts.Port))

	dialer := &net.Dialer{Timeout: s.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", domain.HostMetrics{}, fmt.Errorf("dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return "", domain.HostMetrics{}, fmt.Errorf("handshake: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	hostname := host
	if out, err := runCommand(client, "hostname"); err == nil {
		if name := strings.TrimSpace(out); name != "" {
			hostname = name
		}
	}

	var metrics domain.HostMetrics
	if out, err := runCommand(client, "cat /proc/loadavg"); err == nil {
		metrics.LoadAverage = parseLoadAvg(out)
	}
	if out, err := runCommand(client, "cat /proc/uptime"); err == nil {
		metrics.UptimeSeconds = parseUptime(out)
	}
	if out, err := runCommand(client, "free -m"); err == nil {
		metrics.MemoryTotalMB, metrics.MemoryUsedMB, metrics.MemoryUsage = parseFree(out)
	}
	if out, err := runCommand(client, "df -P /"); err == nil {
		metrics.DiskUsage = parseDiskUsage(out)
	}
	if out, err := runCommand(client, "docker ps --format '{{.Names}}\t{{.ID}}\t{{.Status}}' 2>/dev/null"); err == nil {
		metrics.Containers = parseDockerPS(out)
	}

	return hostname, metrics, nil
}

// runCommand executes one command. A non-zero exit still returns the
// output; docker ps behaves that way when the daemon is down.
func runCommand(client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(cmd)
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return string(output), nil
		}
		return "", fmt.Errorf("run %q: %w", cmd, err)
	}
	return string(output), nil
}

// parseLoadAvg reads the 1-minute average from /proc/loadavg
func parseLoadAvg(out string) *float64 {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseUptime reads the uptime seconds from /proc/uptime
func parseUptime(out string) *float64 {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseFree reads total and used MB from the Mem: row of free -m
func parseFree(out string) (total, used, usage *float64) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "Mem:" {
			continue
		}
		t, err1 := strconv.ParseFloat(fields[1], 64)
		u, err2 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil || t <= 0 {
			return nil, nil, nil
		}
		pct := u / t * 100
		return &t, &u, &pct
	}
	return nil, nil, nil
}

// parseDiskUsage reads the root filesystem use percentage from df -P /
func parseDiskUsage(out string) *float64 {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return nil
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 5 {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(fields[4], "%"), 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseDockerPS reads name/id/status triples from docker ps output
func parseDockerPS(out string) []domain.ContainerMetrics {
	var containers []domain.ContainerMetrics
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 || parts[0] == "" {
			continue
		}
		containers = append(containers, domain.ContainerMetrics{
			Name:        parts[0],
			ContainerID: parts[1],
			Status:      parts[2],
		})
	}
	return containers
}

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eliteGoblin/boardmon/internal/config"
	"github.com/eliteGoblin/boardmon/internal/daemon"
)

func getJSON(url string, out any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func postCommand(baseURL, line string) (string, error) {
	payload, err := json.Marshal(map[string]string{"line": line})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(baseURL+"/api/command", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("command %q: HTTP %d", line, resp.StatusCode)
	}
	var body struct {
		Output string `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Output, nil
}

func readUntil(conn net.Conn, needle string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var sb strings.Builder
	buf := make([]byte, 1024)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := conn.Read(buf)
		sb.Write(buf[:n])
		if strings.Contains(sb.String(), needle) {
			return sb.String(), nil
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return sb.String(), err
		}
	}
	return sb.String(), fmt.Errorf("timed out waiting for %q in %q", needle, sb.String())
}

var _ = Describe("Boardmon Daemon", func() {
	var (
		d       *daemon.Daemon
		cancel  context.CancelFunc
		done    chan error
		baseURL string
		wsURL   string
		conAddr string
	)

	BeforeEach(func() {
		cfg := config.Default()
		cfg.Board = "it-bench"
		cfg.Listen.TCP = "127.0.0.1:0"
		cfg.Listen.HTTP = "127.0.0.1:0"
		cfg.LogStore.Capacity = 8
		cfg.Telemetry.IntervalMs = 50
		cfg.Watchdog.CheckIntervalMs = 20
		cfg.Workers.PulseIntervalMs = 20

		var err error
		d, err = daemon.New(cfg, "0.0.0-it", zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- d.Run(ctx) }()

		Eventually(func() bool {
			return d.APIAddr() != nil && d.ConsoleAddr() != nil
		}, "5s", "20ms").Should(BeTrue())

		baseURL = "http://" + d.APIAddr().String()
		wsURL = "ws://" + d.APIAddr().String() + "/ws"
		conAddr = d.ConsoleAddr().String()
	})

	AfterEach(func() {
		cancel()
		Eventually(done, "10s").Should(Receive(MatchError(context.Canceled)))
	})

	Describe("REST surface", func() {
		It("answers health checks", func() {
			var body map[string]string
			status, err := getJSON(baseURL+"/api/health", &body)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("ok"))
		})

		It("reports board identity and component stats", func() {
			type statusBody struct {
				Board    string `json:"board"`
				Version  string `json:"version"`
				Watchdog struct {
					Registered int `json:"registered"`
				} `json:"watchdog"`
			}

			// The workers register their targets shortly after boot.
			Eventually(func() int {
				var body statusBody
				if _, err := getJSON(baseURL+"/api/status", &body); err != nil {
					return -1
				}
				return body.Watchdog.Registered
			}, "5s", "50ms").Should(Equal(2))

			var body statusBody
			_, err := getJSON(baseURL+"/api/status", &body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body.Board).To(Equal("it-bench"))
			Expect(body.Version).To(Equal("0.0.0-it"))
		})

		It("keeps the log ring bounded under load", func() {
			for i := 0; i < 20; i++ {
				_, err := postCommand(baseURL, fmt.Sprintf("log info SOAK message-%d", i))
				Expect(err).NotTo(HaveOccurred())
			}

			var body struct {
				LogCount int    `json:"log_count"`
				Total    uint64 `json:"total"`
				Dropped  uint64 `json:"dropped"`
			}
			status, err := getJSON(baseURL+"/api/logs", &body)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(body.LogCount).To(Equal(8))
			Expect(body.Total).To(BeNumerically(">=", 20))
			Expect(body.Dropped).To(BeNumerically(">=", 12))
		})

		It("serves Prometheus metrics", func() {
			resp, err := http.Get(baseURL + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("boardmon_logstore_entries"))
			Expect(string(body)).To(ContainSubstring("boardmon_watchdog_recoveries_total"))
		})
	})

	Describe("TCP console", func() {
		It("greets clients and executes commands", func() {
			conn, err := net.Dial("tcp", conAddr)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			greeting, err := readUntil(conn, "console", 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(greeting).To(ContainSubstring("boardmon 0.0.0-it console"))

			_, err = conn.Write([]byte("echo ping\n"))
			Expect(err).NotTo(HaveOccurred())
			_, err = readUntil(conn, "ping", 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
		})

		It("shares command output between console clients", func() {
			connA, err := net.Dial("tcp", conAddr)
			Expect(err).NotTo(HaveOccurred())
			defer connA.Close()
			connB, err := net.Dial("tcp", conAddr)
			Expect(err).NotTo(HaveOccurred())
			defer connB.Close()

			_, err = readUntil(connA, "console", 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
			_, err = readUntil(connB, "console", 5*time.Second)
			Expect(err).NotTo(HaveOccurred())

			_, err = connA.Write([]byte("echo shared-check\n"))
			Expect(err).NotTo(HaveOccurred())

			_, err = readUntil(connA, "shared-check", 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
			_, err = readUntil(connB, "shared-check", 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("watchdog recovery", func() {
		It("restarts a wedged pulse worker end to end", func() {
			type watchdogBody struct {
				Stats struct {
					Recoveries uint64 `json:"recoveries"`
				} `json:"stats"`
				Targets []struct {
					Name  string `json:"name"`
					State string `json:"state"`
				} `json:"targets"`
			}
			pulseState := func() string {
				var body watchdogBody
				if _, err := getJSON(baseURL+"/api/watchdog", &body); err != nil {
					return ""
				}
				for _, target := range body.Targets {
					if target.Name == "pulse" {
						return target.State
					}
				}
				return ""
			}

			Eventually(pulseState, "5s", "50ms").Should(Equal("HEALTHY"))

			output, err := postCommand(baseURL, "misbehave")
			Expect(err).NotTo(HaveOccurred())
			Expect(output).To(ContainSubstring("wedged"))

			Eventually(func() uint64 {
				var body watchdogBody
				if _, err := getJSON(baseURL+"/api/watchdog", &body); err != nil {
					return 0
				}
				return body.Stats.Recoveries
			}, "5s", "50ms").Should(BeNumerically(">=", 1))

			Eventually(pulseState, "5s", "50ms").Should(Equal("HEALTHY"))
		})
	})

	Describe("WebSocket bridge", func() {
		It("streams telemetry and executes inbound commands", func() {
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			Expect(err).NotTo(HaveOccurred())
			if resp != nil {
				resp.Body.Close()
			}
			defer conn.Close()

			readFrame := func() string {
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return ""
				}
				return string(msg)
			}

			Eventually(readFrame, "5s", "10ms").Should(ContainSubstring(`"temp":`))

			err = conn.WriteMessage(websocket.TextMessage, []byte("logstats"))
			Expect(err).NotTo(HaveOccurred())

			Eventually(readFrame, "5s", "10ms").Should(ContainSubstring("Logging Statistics"))
		})
	})
})

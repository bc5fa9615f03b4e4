// Package mqtt reports node state and write events to a broker and accepts
// operator commands from it.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// PingInterval is how often the node announces itself.
const PingInterval = 120 * time.Second

// Presence payloads on the Online topic. Offline is the broker's will.
const (
	Online  = "online"
	Offline = "offline"
)

// Config holds MQTT connection settings.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
	QoS        byte   `yaml:"qos"`
}

// Handlers holds callback functions for MQTT events. They run on paho's
// goroutines.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func()
	OnCommand    func(line string)
}

// Topics are the per-node topic names.
type Topics struct {
	Online  string
	State   string
	Write   string
	Ping    string
	Command string
}

// NodeTopics returns the topics for clientID.
func NodeTopics(clientID string) Topics {
	status := "tagscribe/status/node/" + clientID
	return Topics{
		Online:  status + "/online",
		State:   status + "/state",
		Write:   status + "/write",
		Ping:    status + "/ping",
		Command: "tagscribe/control/node/" + clientID + "/command",
	}
}

// Client publishes node topics. A Client without a broker is disabled and
// every method is a no-op.
type Client struct {
	client   paho.Client
	topics   Topics
	qos      byte
	handlers Handlers
}

// New creates a client for cfg. It does not connect.
func New(cfg Config, clientID string, handlers Handlers) (*Client, error) {
	c := &Client{
		topics:   NodeTopics(clientID),
		qos:      cfg.QoS,
		handlers: handlers,
	}
	if cfg.Host == "" {
		log.Println("MQTT disabled (no host configured)")
		return c, nil
	}
	if c.qos > 2 {
		return nil, fmt.Errorf("qos %d out of range", c.qos)
	}

	broker, tlsConfig, err := brokerURL(cfg)
	if err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60*time.Second).
		SetWill(c.topics.Online, Offline, c.qos, true).
		SetConnectionLostHandler(c.handleConnectionLost).
		SetOnConnectHandler(c.handleConnect)
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}
	c.client = paho.NewClient(opts)

	paho.ERROR = log.New(os.Stdout, "[MQTT ERROR] ", 0)
	paho.CRITICAL = log.New(os.Stdout, "[MQTT CRIT] ", 0)
	paho.WARN = log.New(os.Stdout, "[MQTT WARN] ", 0)

	log.Printf("MQTT broker %s", broker)
	return c, nil
}

// brokerURL picks ssl:// when any certificate is configured.
func brokerURL(cfg Config) (string, *tls.Config, error) {
	if cfg.CACert == "" && cfg.ClientCert == "" {
		port := cfg.Port
		if port == 0 {
			port = 1883
		}
		return fmt.Sprintf("tcp://%s:%d", cfg.Host, port), nil, nil
	}

	port := cfg.Port
	if port == 0 {
		port = 8883
	}
	tlsConfig, err := loadTLS(cfg)
	if err != nil {
		return "", nil, fmt.Errorf("build TLS config: %w", err)
	}
	return fmt.Sprintf("ssl://%s:%d", cfg.Host, port), tlsConfig, nil
}

func loadTLS(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}
	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CACert)
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// IsEnabled returns whether a broker is configured.
func (c *Client) IsEnabled() bool {
	return c.client != nil
}

// Topics returns the node topics.
func (c *Client) Topics() Topics {
	return c.topics
}

// Connect blocks until the first connection. A disabled client reports
// itself connected so the indicator leaves the lost state.
func (c *Client) Connect() error {
	if !c.IsEnabled() {
		if c.handlers.OnConnect != nil {
			c.handlers.OnConnect()
		}
		return nil
	}
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect: %w", token.Error())
	}
	return nil
}

// Disconnect marks the node offline and closes the connection.
func (c *Client) Disconnect() {
	if !c.IsEnabled() {
		return
	}
	if c.client.IsConnected() {
		c.client.Publish(c.topics.Online, c.qos, true, Offline).WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
}

// PublishState publishes v as the retained node state.
func (c *Client) PublishState(v any) {
	c.publishJSON(c.topics.State, true, v)
}

// PublishWrite publishes a write event.
func (c *Client) PublishWrite(v any) {
	c.publishJSON(c.topics.Write, false, v)
}

func (c *Client) publishJSON(topic string, retained bool, v any) {
	if !c.IsEnabled() {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("MQTT encode %s: %v", topic, err)
		return
	}
	c.client.Publish(topic, c.qos, retained, payload)
}

// RunPing publishes a timestamp on the ping topic until ctx is done.
func (c *Client) RunPing(ctx context.Context, interval time.Duration) {
	if !c.IsEnabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			c.client.Publish(c.topics.Ping, 0, false, t.UTC().Format(time.RFC3339))
		}
	}
}

func (c *Client) handleConnect(client paho.Client) {
	log.Println("MQTT connection established")
	client.Publish(c.topics.Online, c.qos, true, Online)
	// Subscriptions are not kept across reconnects without a persistent
	// session
	if token := client.Subscribe(c.topics.Command, c.qos, c.handleCommand); token.Wait() && token.Error() != nil {
		log.Printf("MQTT subscribe %s: %v", c.topics.Command, token.Error())
	}
	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}
}

func (c *Client) handleConnectionLost(client paho.Client, err error) {
	log.Printf("MQTT connection lost: %v", err)
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect()
	}
}

func (c *Client) handleCommand(client paho.Client, msg paho.Message) {
	if c.handlers.OnCommand != nil {
		c.handlers.OnCommand(string(msg.Payload()))
	}
}

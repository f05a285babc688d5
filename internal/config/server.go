// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// BindListenAddr puts bind in front of a port-only listen address such
// as ":8080". Addresses that already name a host are returned unchanged.
// "if:<name>" binds to the first non-loopback IPv4 address of interface
// <name>.
func BindListenAddr(listenAddr, bind string) (string, error) {
	if bind == "" || (listenAddr != "" && !strings.HasPrefix(listenAddr, ":")) {
		return listenAddr, nil
	}
	port := strings.TrimPrefix(listenAddr, ":")
	if port == "" {
		port = "0"
	}
	host := bind
	if name, ok := strings.CutPrefix(bind, "if:"); ok && name != "" {
		ip, err := interfaceIPv4(name)
		if err != nil {
			return "", err
		}
		host = ip
	}
	return net.JoinHostPort(host, port), nil
}

func interfaceIPv4(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", fmt.Errorf("resolve interface %q: %w", name, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", fmt.Errorf("list addrs for %q: %w", name, err)
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		return ip.String(), nil
	}
	return "", fmt.Errorf("no suitable IPv4 on interface %q", name)
}

// ServerConfig tunes the relay API listener.
type ServerConfig struct {
	ListenAddr        string        `yaml:"listenAddr" json:"listenAddr"`
	ReadTimeout       time.Duration `yaml:"readTimeout" json:"readTimeout"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" json:"readHeaderTimeout"`
	// WriteTimeout stays 0 for the relay: a download lasts as long as the
	// media does.
	WriteTimeout   time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout" json:"idleTimeout"`
	MaxHeaderBytes int           `yaml:"maxHeaderBytes" json:"maxHeaderBytes"`
	// ShutdownTimeout is the grace period for in-flight downloads.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	// MaxConnections caps concurrently accepted connections; 0 is unlimited.
	MaxConnections int `yaml:"maxConnections" json:"maxConnections"`
}

const (
	defaultListenAddr        = ":8080"
	defaultReadTimeout       = 60 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 0 // streaming
	defaultIdleTimeout       = 120 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1 MB
	defaultShutdownTimeout   = 15 * time.Second
	minShutdownTimeout       = 3 * time.Second
)

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:        defaultListenAddr,
		ReadTimeout:       defaultReadTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		ShutdownTimeout:   defaultShutdownTimeout,
	}
}

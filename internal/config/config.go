// Package config loads the overlay's static topology and consistency
// configuration: a whitespace-token file format that
// fixes the consistency method, TTR, flood TTL, and the full
// super-peer/leaf membership at startup. There is no dynamic topology;
// everything here is read once, at process start.
//
// The parser's "unknown leading token on a data line is skipped, not an
// error" tolerance matches the original C++ program's get_network
// (super_peer.cpp/leaf_node.cpp), which only cared about a single
// member's record and ignored every other line wholesale.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rsjudka/overlay/internal/consistency"
)

// memberType tags a data line as describing a super-peer or a leaf.
const (
	memberSuperPeer = "0"
	memberLeaf      = "1"
)

// SuperPeerRecord describes one super-peer's static network placement.
type SuperPeerRecord struct {
	ID        int32
	Port      int32
	PeerPorts []int32
	LeafPorts []int32
}

// LeafRecord describes one leaf's static network placement.
type LeafRecord struct {
	ID            int32
	Port          int32
	SuperPeerPort int32
}

// Config is the fully parsed configuration file.
type Config struct {
	Method     consistency.Method
	TTR        time.Duration
	TTL        int32
	SuperPeers map[int32]SuperPeerRecord
	Leaves     map[int32]LeafRecord
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	return parse(f)
}

func parse(r io.Reader) (*Config, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	header, err := nextTokens(scanner)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("config: missing consistency method")
	}

	methodVal, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("config: invalid consistency method %q: %w", header[0], err)
	}
	method, err := methodFromInt(methodVal)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Method:     method,
		SuperPeers: make(map[int32]SuperPeerRecord),
		Leaves:     make(map[int32]LeafRecord),
	}

	rest := header[1:]
	if method == consistency.PullOrigin || method == consistency.PullPeer {
		if len(rest) == 0 {
			return nil, fmt.Errorf("config: missing ttr for method %s", method)
		}
		ttrSec, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("config: invalid ttr %q: %w", rest[0], err)
		}
		cfg.TTR = time.Duration(ttrSec) * time.Second
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return nil, fmt.Errorf("config: missing ttl")
	}
	ttl, err := strconv.Atoi(rest[0])
	if err != nil {
		return nil, fmt.Errorf("config: invalid ttl %q: %w", rest[0], err)
	}
	cfg.TTL = int32(ttl)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case memberSuperPeer:
			rec, err := parseSuperPeerRecord(fields)
			if err != nil {
				return nil, err
			}
			cfg.SuperPeers[rec.ID] = rec
		case memberLeaf:
			rec, err := parseLeafRecord(fields)
			if err != nil {
				return nil, err
			}
			cfg.Leaves[rec.ID] = rec
		default:
			// unrecognized leading token: skip the line, matching the
			// original loader's tolerance for stray/foreign lines.
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	return cfg, nil
}

func parseSuperPeerRecord(fields []string) (SuperPeerRecord, error) {
	if len(fields) < 5 {
		return SuperPeerRecord{}, fmt.Errorf("config: malformed super-peer record: %q", strings.Join(fields, " "))
	}
	id, err := parseInt32(fields[1])
	if err != nil {
		return SuperPeerRecord{}, fmt.Errorf("config: super-peer id: %w", err)
	}
	port, err := parseInt32(fields[2])
	if err != nil {
		return SuperPeerRecord{}, fmt.Errorf("config: super-peer port: %w", err)
	}
	peers, err := parseCommaInts(fields[3])
	if err != nil {
		return SuperPeerRecord{}, fmt.Errorf("config: super-peer peer list: %w", err)
	}
	leaves, err := parseCommaInts(fields[4])
	if err != nil {
		return SuperPeerRecord{}, fmt.Errorf("config: super-peer leaf list: %w", err)
	}
	return SuperPeerRecord{ID: id, Port: port, PeerPorts: peers, LeafPorts: leaves}, nil
}

func parseLeafRecord(fields []string) (LeafRecord, error) {
	if len(fields) < 4 {
		return LeafRecord{}, fmt.Errorf("config: malformed leaf record: %q", strings.Join(fields, " "))
	}
	id, err := parseInt32(fields[1])
	if err != nil {
		return LeafRecord{}, fmt.Errorf("config: leaf id: %w", err)
	}
	port, err := parseInt32(fields[2])
	if err != nil {
		return LeafRecord{}, fmt.Errorf("config: leaf port: %w", err)
	}
	superPort, err := parseInt32(fields[3])
	if err != nil {
		return LeafRecord{}, fmt.Errorf("config: leaf super-peer port: %w", err)
	}
	return LeafRecord{ID: id, Port: port, SuperPeerPort: superPort}, nil
}

func methodFromInt(v int) (consistency.Method, error) {
	switch v {
	case 0:
		return consistency.Push, nil
	case 1:
		return consistency.PullOrigin, nil
	case 2:
		return consistency.PullPeer, nil
	default:
		return 0, fmt.Errorf("config: unknown consistency method %d", v)
	}
}

func parseCommaInts(s string) ([]int32, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int32, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		n, err := parseInt32(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

// nextTokens reads the next non-blank line and splits it into
// whitespace-delimited fields. The header (method, optional ttr, ttl)
// is expected on a single line preceding the member records.
func nextTokens(scanner *bufio.Scanner) ([]string, error) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		return strings.Fields(line), nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read header: %w", err)
	}
	return nil, nil
}

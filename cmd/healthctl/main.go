package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultServerURL = "http://localhost:8080"
	version          = "0.1.0"
)

type CLIConfig struct {
	ServerURL string
	Token     string
	Verbose   bool
}

var demoMetrics = map[string]struct{ base, spread float64 }{
	"motor_temp":      {base: 65, spread: 3},
	"bearing_temp":    {base: 55, spread: 2.5},
	"oil_pressure":    {base: 4.5, spread: 0.3},
	"phase_a_current": {base: 24, spread: 1.5},
	"phase_b_current": {base: 24, spread: 1.5},
	"phase_c_current": {base: 24, spread: 1.5},
	"vibration_rms":   {base: 1.2, spread: 0.2},
}

func main() {
	var (
		serverURL = flag.String("server", defaultServerURL, "Health engine server URL")
		token     = flag.String("token", "", "Bearer token for authenticated commands")
		verbose   = flag.Bool("v", false, "Verbose output")
		command   = flag.String("cmd", "", "Command to execute")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || *command == "" {
		showHelp()
		return
	}

	config := CLIConfig{
		ServerURL: *serverURL,
		Token:     *token,
		Verbose:   *verbose,
	}

	args := flag.Args()

	switch *command {
	case "ingest":
		handleIngest(config, args)
	case "detect":
		handleDetect(config, args)
	case "train":
		handleTrain(config, args)
	case "model":
		handleGet(config, "/api/v1/model", "🧠 Model State")
	case "diagnose":
		handleGet(config, "/api/v1/diagnose", "🔍 Engine Diagnosis")
	case "trend":
		handleTrend(config, args)
	case "recent":
		handleGet(config, "/api/v1/results/recent", "🗂  Recent Results")
	case "stats":
		handleGet(config, "/api/v1/stats", "📈 System Statistics")
	case "health":
		handleHealth(config)
	case "demo":
		handleDemo(config, args)
	default:
		fmt.Printf("Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}
}

func showHelp() {
	fmt.Printf(`Machine Health Engine CLI v%s

USAGE:
    healthctl --cmd <command> [options] [args]

COMMANDS:
    ingest    - Send a telemetry sample to the intake buffer
    detect    - Run anomaly detection on one sample
    train     - Train the model from a JSON file of samples
    model     - Show model state and performance
    diagnose  - Run the engine self-check
    trend     - Show the health score trend
    recent    - Show recent detection results
    stats     - Show system statistics
    health    - Check service health
    demo      - Train with generated baseline data and run a detection

INGESTION AND DETECTION:
    healthctl --cmd ingest --values "motor_temp=66.1,oil_pressure=4.4"
    healthctl --cmd detect --values "motor_temp=95.0,oil_pressure=2.1"

TRAINING:
    healthctl --cmd train --file baseline.json
    healthctl --cmd train --file baseline.json --force
    healthctl --cmd demo --points 300

MONITORING:
    healthctl --cmd model
    healthctl --cmd diagnose
    healthctl --cmd trend --days 7

OPTIONS:
    --server   Server URL (default: http://localhost:8080)
    --token    Bearer token for train and cache commands
    --v        Verbose output
    --help     Show this help message

`, version)
}

func handleIngest(config CLIConfig, args []string) {
	sample, err := parseValues(getArg(args, "--values", ""))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	body, status, err := postJSON(config, "/api/v1/samples", sample)
	if err != nil {
		fmt.Printf("Error ingesting sample: %v\n", err)
		return
	}
	if status != http.StatusCreated {
		fmt.Printf("Ingest failed: %s\n", string(body))
		return
	}
	fmt.Printf("✓ Sample accepted (%d metrics)\n", len(sample))
}

func handleDetect(config CLIConfig, args []string) {
	sample, err := parseValues(getArg(args, "--values", ""))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	body, status, err := postJSON(config, "/api/v1/detect", sample)
	if err != nil {
		fmt.Printf("Error running detection: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Printf("Detection failed: %s\n", string(body))
		return
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Error parsing response: %v\n", err)
		return
	}

	if anomaly, _ := result["is_anomaly"].(bool); anomaly {
		fmt.Println("🚨 ANOMALY DETECTED")
	} else {
		fmt.Println("✅ Sample looks normal")
	}
	fmt.Printf("  Score:      %v\n", result["anomaly_score"])
	fmt.Printf("  Confidence: %v\n", result["confidence"])
	fmt.Printf("  Health:     %v\n", result["health_score"])

	if config.Verbose {
		prettyJSON, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(prettyJSON))
	}
}

func handleTrain(config CLIConfig, args []string) {
	file := getArg(args, "--file", "")
	if file == "" {
		fmt.Println("Error: --file is required")
		return
	}
	force := hasArg(args, "--force")

	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", file, err)
		return
	}

	var samples []map[string]float64
	if err := json.Unmarshal(data, &samples); err != nil {
		fmt.Printf("Error parsing %s: %v\n", file, err)
		return
	}

	sendTraining(config, samples, force)
}

func sendTraining(config CLIConfig, samples []map[string]float64, force bool) {
	body, status, err := postJSON(config, "/api/v1/train", map[string]interface{}{
		"samples": samples,
		"force":   force,
	})
	if err != nil {
		fmt.Printf("Error training: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Printf("Training failed: %s\n", string(body))
		return
	}
	fmt.Printf("✅ Model trained on %d samples\n", len(samples))
}

func handleTrend(config CLIConfig, args []string) {
	days := getArg(args, "--days", "7")
	handleGet(config, "/api/v1/health/trend?days="+days, "📉 Health Trend")
}

func handleGet(config CLIConfig, path, title string) {
	resp, err := http.Get(config.ServerURL + path)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error reading response: %v\n", err)
		return
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed: %s\n", string(body))
		return
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Error parsing response: %v\n", err)
		return
	}

	fmt.Println(title)
	prettyJSON, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(prettyJSON))
}

func handleHealth(config CLIConfig) {
	resp, err := http.Get(config.ServerURL + "/health")
	if err != nil {
		fmt.Printf("❌ Health check failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error reading response: %v\n", err)
		return
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("❌ Service unhealthy: %s\n", string(body))
		return
	}

	fmt.Println("✅ Service is healthy")
	if config.Verbose {
		var result map[string]interface{}
		if err := json.Unmarshal(body, &result); err == nil {
			prettyJSON, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(prettyJSON))
		}
	}
}

func handleDemo(config CLIConfig, args []string) {
	points, err := strconv.Atoi(getArg(args, "--points", "300"))
	if err != nil || points < 1 {
		fmt.Println("Error: invalid --points")
		return
	}

	fmt.Printf("🚀 Generating %d baseline samples\n", points)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	samples := make([]map[string]float64, points)
	for i := range samples {
		s := make(map[string]float64, len(demoMetrics))
		for name, m := range demoMetrics {
			s[name] = m.base + rng.NormFloat64()*m.spread
		}
		samples[i] = s
	}

	sendTraining(config, samples, true)

	// One clearly hot sample to show a detection
	hot := make(map[string]float64, len(demoMetrics))
	for name, m := range demoMetrics {
		hot[name] = m.base
	}
	hot["motor_temp"] = demoMetrics["motor_temp"].base + 40

	fmt.Println("\nDetecting an overheating sample:")
	handleDetectSample(config, hot)

	fmt.Println("\nTry these commands:")
	fmt.Println("  healthctl --cmd model")
	fmt.Println("  healthctl --cmd diagnose")
	fmt.Println("  healthctl --cmd trend --days 1")
}

func handleDetectSample(config CLIConfig, sample map[string]float64) {
	parts := make([]string, 0, len(sample))
	for name, v := range sample {
		parts = append(parts, fmt.Sprintf("%s=%g", name, v))
	}
	handleDetect(config, []string{"--values", strings.Join(parts, ",")})
}

func parseValues(raw string) (map[string]float64, error) {
	if raw == "" {
		return nil, fmt.Errorf("--values is required (e.g. \"motor_temp=66.1,oil_pressure=4.4\")")
	}
	sample := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid pair %q", pair)
		}
		v, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %v", pair, err)
		}
		sample[kv[0]] = v
	}
	return sample, nil
}

func postJSON(config CLIConfig, path string, payload interface{}) ([]byte, int, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequest(http.MethodPost, config.ServerURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+config.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func getArg(args []string, flag, defaultValue string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultValue
}

func hasArg(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}

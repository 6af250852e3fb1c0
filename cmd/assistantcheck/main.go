package main

// Exercise the assistant provider against a catalog module without
// running the API:
//   go run ./cmd/assistantcheck -module doc-generator -message "I need a whitepaper"

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"studio-backend/internal/assistant"
	openai "studio-backend/internal/assistant/openai"
	"studio-backend/internal/catalog"
	"studio-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	moduleID := flag.String("module", "doc-generator", "Catalog module id")
	message := flag.String("message", "", "User message to send")
	fieldArgs := flag.String("fields", "", "Pre-filled fields as key=value pairs, comma separated")
	outPath := flag.String("out", "", "Path to write the raw JSON reply (optional)")
	provider := flag.String("provider", cfg.AssistantProvider, "Assistant provider")
	model := flag.String("model", cfg.AssistantModel, "Assistant model")
	flag.Parse()

	if strings.TrimSpace(*message) == "" {
		exitErr("message is required")
	}

	desc, err := findModule(*moduleID)
	if err != nil {
		exitErr(err.Error())
	}

	client, err := buildClient(*provider, *model)
	if err != nil {
		exitErr(err.Error())
	}

	snapshot := assistant.Snapshot{
		ModuleID:       desc.ID,
		ModuleName:     desc.Name,
		RequiredFields: desc.RequiredFields,
		Fields:         parseFields(*fieldArgs),
		Quantities:     map[string]int{},
	}

	reply, err := client.Converse(context.Background(), assistant.Input{
		SessionID: "assistantcheck",
		Message:   *message,
		Snapshot:  snapshot,
	})
	if err != nil {
		exitErr(fmt.Sprintf("assistant converse: %v", err))
	}
	if reply.State != "" && !assistant.ValidState(reply.State) {
		exitErr(fmt.Sprintf("assistant returned unknown state: %s", reply.State))
	}

	raw, err := json.Marshal(reply)
	if err != nil {
		exitErr(fmt.Sprintf("encode reply: %v", err))
	}
	pretty, err := prettyJSON(raw)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(pretty) == 0 || pretty[len(pretty)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func findModule(id string) (catalog.ModuleDescriptor, error) {
	for _, desc := range catalog.DefaultModules() {
		if desc.ID == id {
			return desc, nil
		}
	}
	return catalog.ModuleDescriptor{}, fmt.Errorf("unknown module: %s", id)
}

func buildClient(provider, model string) (assistant.Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		return openai.NewClient(os.Getenv("OPENAI_API_KEY"), model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func parseFields(raw string) map[string]string {
	fields := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}

func prettyJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

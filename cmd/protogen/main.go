// Command protogen emits a JSON schema for the wire protocol so client
// authors can validate their payloads without reading the server source.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"reflect"

	"github.com/iancoleman/orderedmap"
	"github.com/invopop/jsonschema"

	"github.com/fed135/mine-land/internal/net/proto"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "output path for the JSON schema (stdout when empty)")
	flag.Parse()

	schema := buildSchema()
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("protogen: marshal schema: %v", err)
	}
	data = append(data, '\n')

	if outPath == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		log.Fatalf("protogen: create output dir: %v", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Fatalf("protogen: write schema: %v", err)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}

	topics := []struct {
		topic   string
		payload any
	}{
		{proto.TopicPreferences, proto.Preferences{}},
		{proto.TopicAction, proto.ActionRequest{}},
		{proto.TopicDashboard, proto.DashboardRequest{}},
		{proto.TopicSessionAssigned, proto.SessionAssigned{}},
		{proto.TopicWelcome, proto.Welcome{}},
		{proto.TopicViewport, proto.ViewportUpdate{}},
		{proto.TopicPlayerUpdate, proto.PlayerUpdate{}},
		{proto.TopicTileUpdate, proto.TileUpdate{}},
		{proto.TopicLeaderboard, proto.LeaderboardUpdate{}},
		{proto.TopicExplosion, proto.ExplosionEvent{}},
		{proto.TopicPlayerDeath, proto.PlayerDeath{}},
		{proto.TopicGameEnd, proto.GameEnd{}},
		{proto.TopicActionRejected, proto.ActionRejected{}},
	}

	properties := orderedmap.New()
	for _, entry := range topics {
		payloadSchema := reflector.ReflectFromType(reflect.TypeOf(entry.payload))
		payloadSchema.Version = ""
		properties.Set(entry.topic, payloadSchema)
	}

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "mine-land wire protocol",
		Description: "Payload schemas for every topic, keyed by topic name.",
		Type:        "object",
		Properties:  properties,
	}
}

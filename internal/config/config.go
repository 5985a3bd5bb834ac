package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrMissing is returned when a required environment variable is unset or empty.
var ErrMissing = errors.New("required configuration missing")

// Search holds the configuration read by the HTTP search-and-store function.
// Every field is required.
type Search struct {
	KeyVaultName   string
	SecretName     string
	SearchEndpoint string
	BlobAccount    string
	BlobContainer  string
}

// DataLake holds the target of the blob-triggered processor. Fields may be
// empty; the upload call is where an empty value fails.
type DataLake struct {
	Account   string
	Container string
	Directory string
}

// Host configures the custom handler process.
type Host struct {
	Port              string
	// IdentityClientID selects a user-assigned managed identity.
	IdentityClientID  string
	// CredentialSources names an explicit identity chain, in order.
	CredentialSources []string
}

// Sinks configures the optional outputs created once at process start.
type Sinks struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
	KafkaBrokers       []string
	KafkaTopic         string
}

// LoadSearch builds a Search config from environment variables.
func LoadSearch() (*Search, error) {
	c := &Search{}
	var missing []string
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"KEY_VAULT_RESOURCE_NAME", &c.KeyVaultName},
		{"KEY_VAULT_SECRET_NAME", &c.SecretName},
		{"BING_SEARCH_URL", &c.SearchEndpoint},
		{"BLOB_STORAGE_RESOURCE_NAME", &c.BlobAccount},
		{"BLOB_STORAGE_CONTAINER_NAME", &c.BlobContainer},
	} {
		v, ok := lookup(f.key)
		if !ok {
			missing = append(missing, f.key)
			continue
		}
		*f.dst = v
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return c, nil
}

// LoadDataLake builds a DataLake config. It never fails.
func LoadDataLake() *DataLake {
	return &DataLake{
		Account:   getEnv("DATALAKE_GEN_2_RESOURCE_NAME", ""),
		Container: getEnv("DATALAKE_GEN_2_CONTAINER_NAME", ""),
		Directory: getEnv("DATALAKE_GEN_2_DIRECTORY_NAME", ""),
	}
}

// LoadHost builds a Host config from environment variables.
func LoadHost() (*Host, error) {
	c := &Host{
		Port:              getEnv("FUNCTIONS_CUSTOMHANDLER_PORT", "8080"),
		IdentityClientID:  getEnv("AZURE_CLIENT_ID", ""),
		CredentialSources: splitAndTrim(getEnv("AZURE_CREDENTIAL_SOURCES", "")),
	}

	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("FUNCTIONS_CUSTOMHANDLER_PORT must be a valid port, got %q", c.Port)
	}

	return c, nil
}

// LoadSinks builds a Sinks config. Empty ELASTICSEARCH_ADDR or KAFKA_BROKERS
// disables the corresponding sink.
func LoadSinks() *Sinks {
	return &Sinks{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", ""),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "news"),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "news_pipeline_events"),
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func getEnv(key, fallback string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

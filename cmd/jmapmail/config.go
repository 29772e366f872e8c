package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"jmapmail/internal/common/validation"
	"jmapmail/internal/common/version"
)

// Config holds all configuration for jmapmail.
type Config struct {
	// Connection settings
	Host        string
	Username    string
	Password    string
	AccessToken string

	// OAuth2 client-credentials settings
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       string

	// Action
	Action string

	// Authentication
	AuthMethod string // auto, basic, bearer, oauth2

	// TLS settings
	SkipVerify  bool
	PFXPath     string
	PFXPassword string

	// Request pacing
	RateLimit float64

	// Operation parameters
	Mailbox  string
	EmailID  string
	ThreadID string
	To       string
	Cc       string
	Bcc      string
	From     string
	Subject  string
	Body     string
	HTMLBody string
	Limit    uint
	Unread   bool
	Flagged  bool
	Search   string
	SetValue bool

	// Attachment parameters
	OutDir        string
	IncludeInline bool
	MIMETypes     string

	// Poll parameters
	PollConfigPath string
	StateDB        string

	// Output
	JSONOutput bool

	// Logging
	VerboseMode bool
	LogLevel    string

	// Other
	ShowVersion bool
}

// NewConfig creates a new Config with sensible default values.
func NewConfig() *Config {
	return &Config{
		AuthMethod: "auto",
		LogLevel:   "info",
		StateDB:    "jmapmail-state.db",
	}
}

// actionNames lists every valid action in usage order.
var actionNames = []string{
	"testconnect", "testauth", "mailboxes", "identities",
	"query", "get", "thread", "labels",
	"send", "draft", "reply",
	"move", "markread", "flag", "delete",
	"attachments", "raw", "poll",
}

// parseAndConfigureFlags parses command-line flags and environment variables.
func parseAndConfigureFlags() *Config {
	config := NewConfig()

	// Define flags
	flag.StringVar(&config.Action, "action", "", "Action to perform (env: JMAPACTION)")
	flag.StringVar(&config.Host, "host", "", "JMAP server hostname or base URL (env: JMAPHOST)")
	flag.StringVar(&config.Username, "username", "", "Username for authentication (env: JMAPUSERNAME)")
	flag.StringVar(&config.Password, "password", "", "Password for authentication (env: JMAPPASSWORD)")
	flag.StringVar(&config.AccessToken, "accesstoken", "", "Access token for Bearer authentication (env: JMAPACCESSTOKEN)")
	flag.StringVar(&config.AuthMethod, "authmethod", "auto", "Authentication method: auto, basic, bearer, oauth2 (env: JMAPAUTHMETHOD)")
	flag.StringVar(&config.TokenURL, "tokenurl", "", "OAuth2 token endpoint for client-credentials flow (env: JMAPTOKENURL)")
	flag.StringVar(&config.ClientID, "clientid", "", "OAuth2 client ID (env: JMAPCLIENTID)")
	flag.StringVar(&config.ClientSecret, "clientsecret", "", "OAuth2 client secret (env: JMAPCLIENTSECRET)")
	flag.StringVar(&config.Scopes, "scopes", "", "OAuth2 scopes, comma-separated")
	flag.BoolVar(&config.SkipVerify, "skipverify", false, "Skip TLS certificate verification (env: JMAPSKIPVERIFY)")
	flag.StringVar(&config.PFXPath, "pfxpath", "", "PKCS#12 client certificate file for mutual TLS")
	flag.StringVar(&config.PFXPassword, "pfxpassword", "", "Password for the PKCS#12 file")
	flag.Float64Var(&config.RateLimit, "ratelimit", 0, "Max requests per second, 0 disables pacing")
	flag.StringVar(&config.Mailbox, "mailbox", "", "Mailbox ID, role or name for query/move/poll scope")
	flag.StringVar(&config.EmailID, "email", "", "Email ID for get/labels/reply/move/markread/flag/delete/attachments/raw")
	flag.StringVar(&config.ThreadID, "thread", "", "Thread ID for the thread action")
	flag.StringVar(&config.To, "to", "", "Recipients, comma-separated")
	flag.StringVar(&config.Cc, "cc", "", "Cc recipients, comma-separated")
	flag.StringVar(&config.Bcc, "bcc", "", "Bcc recipients, comma-separated")
	flag.StringVar(&config.From, "from", "", "Sender address; defaults to the account's first identity")
	flag.StringVar(&config.Subject, "subject", "", "Subject for send/draft/reply")
	flag.StringVar(&config.Body, "body", "", "Plain-text body for send/draft/reply")
	flag.StringVar(&config.HTMLBody, "htmlbody", "", "HTML body for send/draft/reply")
	flag.UintVar(&config.Limit, "limit", 50, "Max results for the query action")
	flag.BoolVar(&config.Unread, "unread", false, "Restrict query to unread emails")
	flag.BoolVar(&config.Flagged, "flagged", false, "Restrict query to flagged emails")
	flag.StringVar(&config.Search, "search", "", "Full-text search term for the query action")
	flag.BoolVar(&config.SetValue, "set", true, "Value for markread/flag: true sets, false clears")
	flag.StringVar(&config.OutDir, "outdir", ".", "Directory to write downloaded attachments into")
	flag.BoolVar(&config.IncludeInline, "includeinline", false, "Include inline parts when downloading attachments")
	flag.StringVar(&config.MIMETypes, "mimetypes", "", "Attachment MIME allowlist, comma-separated (e.g. image/*,application/pdf)")
	flag.StringVar(&config.PollConfigPath, "pollconfig", "", "TOML file with poll trigger settings")
	flag.StringVar(&config.StateDB, "statedb", "jmapmail-state.db", "SQLite file holding poll watermarks")
	flag.BoolVar(&config.JSONOutput, "json", false, "Print results as JSON")
	flag.BoolVar(&config.VerboseMode, "verbose", false, "Enable verbose output (env: JMAPVERBOSE)")
	flag.StringVar(&config.LogLevel, "loglevel", "info", "Log level: debug, info, warn, error (env: JMAPLOGLEVEL)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version information")

	// Custom usage
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "jmapmail - JMAP Mail Client - Version %s\n\n", version.Get())
		fmt.Fprintf(os.Stderr, "Command-line client for JMAP (RFC 8620/8621) mail servers.\n\n")
		fmt.Fprintf(os.Stderr, "Actions:\n")
		fmt.Fprintf(os.Stderr, "  testconnect  Discover the session and print server capabilities\n")
		fmt.Fprintf(os.Stderr, "  testauth     Verify credentials against the session endpoint\n")
		fmt.Fprintf(os.Stderr, "  mailboxes    List mailboxes\n")
		fmt.Fprintf(os.Stderr, "  identities   List sending identities\n")
		fmt.Fprintf(os.Stderr, "  query        Search emails by mailbox/keyword/text filters\n")
		fmt.Fprintf(os.Stderr, "  get          Fetch one email with bodies\n")
		fmt.Fprintf(os.Stderr, "  thread       Fetch every email in a thread\n")
		fmt.Fprintf(os.Stderr, "  labels       Show the mailboxes an email belongs to\n")
		fmt.Fprintf(os.Stderr, "  send         Send an email (draft + submission)\n")
		fmt.Fprintf(os.Stderr, "  draft        Save a draft without sending\n")
		fmt.Fprintf(os.Stderr, "  reply        Reply to an email\n")
		fmt.Fprintf(os.Stderr, "  move         Move an email to a mailbox\n")
		fmt.Fprintf(os.Stderr, "  markread     Set or clear the $seen keyword\n")
		fmt.Fprintf(os.Stderr, "  flag         Set or clear the $flagged keyword\n")
		fmt.Fprintf(os.Stderr, "  delete       Destroy emails\n")
		fmt.Fprintf(os.Stderr, "  attachments  Download an email's attachments\n")
		fmt.Fprintf(os.Stderr, "  raw          Download the raw message and list its MIME parts\n")
		fmt.Fprintf(os.Stderr, "  poll         Run the incremental new-mail polling loop\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  JMAPHOST         Server hostname\n")
		fmt.Fprintf(os.Stderr, "  JMAPUSERNAME     Username\n")
		fmt.Fprintf(os.Stderr, "  JMAPPASSWORD     Password\n")
		fmt.Fprintf(os.Stderr, "  JMAPACCESSTOKEN  Access token\n")
		fmt.Fprintf(os.Stderr, "  JMAPAUTHMETHOD   Authentication method\n")
		fmt.Fprintf(os.Stderr, "  JMAPTOKENURL     OAuth2 token endpoint\n")
		fmt.Fprintf(os.Stderr, "  JMAPCLIENTID     OAuth2 client ID\n")
		fmt.Fprintf(os.Stderr, "  JMAPCLIENTSECRET OAuth2 client secret\n")
		fmt.Fprintf(os.Stderr, "  JMAPSKIPVERIFY   Skip TLS verification (true/false)\n")
		fmt.Fprintf(os.Stderr, "  JMAPVERBOSE      Verbose output (true/false)\n")
		fmt.Fprintf(os.Stderr, "  JMAPLOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  JMAPACTION       Action to perform\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  jmapmail -action testconnect -host jmap.fastmail.com\n")
		fmt.Fprintf(os.Stderr, "  jmapmail -action query -host jmap.fastmail.com -username user@example.com -accesstoken \"token\" -mailbox inbox -unread\n")
		fmt.Fprintf(os.Stderr, "  jmapmail -action send -host jmap.fastmail.com -username user@example.com -accesstoken \"token\" -to rcpt@example.com -subject hi -body hello\n")
		fmt.Fprintf(os.Stderr, "  jmapmail -action poll -host jmap.fastmail.com -accesstoken \"token\" -pollconfig poll.toml\n")
	}

	flag.Parse()

	// Track which flags were explicitly set via command line
	providedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		providedFlags[f.Name] = true
	})

	// Read from environment variables if not set via flags
	if !providedFlags["host"] {
		if envHost := os.Getenv("JMAPHOST"); envHost != "" {
			config.Host = envHost
		}
	}
	if !providedFlags["username"] {
		if envUsername := os.Getenv("JMAPUSERNAME"); envUsername != "" {
			config.Username = envUsername
		}
	}
	if !providedFlags["password"] {
		if envPassword := os.Getenv("JMAPPASSWORD"); envPassword != "" {
			config.Password = envPassword
		}
	}
	if !providedFlags["accesstoken"] {
		if envToken := os.Getenv("JMAPACCESSTOKEN"); envToken != "" {
			config.AccessToken = envToken
		}
	}
	if !providedFlags["authmethod"] {
		if envAuthMethod := os.Getenv("JMAPAUTHMETHOD"); envAuthMethod != "" {
			config.AuthMethod = envAuthMethod
		}
	}
	if !providedFlags["tokenurl"] {
		if envTokenURL := os.Getenv("JMAPTOKENURL"); envTokenURL != "" {
			config.TokenURL = envTokenURL
		}
	}
	if !providedFlags["clientid"] {
		if envClientID := os.Getenv("JMAPCLIENTID"); envClientID != "" {
			config.ClientID = envClientID
		}
	}
	if !providedFlags["clientsecret"] {
		if envClientSecret := os.Getenv("JMAPCLIENTSECRET"); envClientSecret != "" {
			config.ClientSecret = envClientSecret
		}
	}
	if !providedFlags["skipverify"] {
		if envSkipVerify := os.Getenv("JMAPSKIPVERIFY"); envSkipVerify != "" {
			config.SkipVerify = strings.EqualFold(envSkipVerify, "true") || envSkipVerify == "1"
		}
	}
	if !providedFlags["verbose"] {
		if envVerbose := os.Getenv("JMAPVERBOSE"); envVerbose != "" {
			config.VerboseMode = strings.EqualFold(envVerbose, "true") || envVerbose == "1"
		}
	}
	if !providedFlags["loglevel"] {
		if envLogLevel := os.Getenv("JMAPLOGLEVEL"); envLogLevel != "" {
			config.LogLevel = envLogLevel
		}
	}
	if !providedFlags["action"] {
		if envAction := os.Getenv("JMAPACTION"); envAction != "" {
			config.Action = envAction
		}
	}
	if !providedFlags["ratelimit"] {
		if envRate := os.Getenv("JMAPRATELIMIT"); envRate != "" {
			if rate, err := strconv.ParseFloat(envRate, 64); err == nil && rate >= 0 {
				config.RateLimit = rate
			}
		}
	}

	return config
}

// splitList splits a comma-separated flag value, dropping empties.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validateConfiguration validates the configuration.
func validateConfiguration(config *Config) error {
	// Validate action
	validActions := make(map[string]bool, len(actionNames))
	for _, name := range actionNames {
		validActions[name] = true
	}

	action := strings.ToLower(config.Action)
	if !validActions[action] {
		return fmt.Errorf("invalid action: %s (valid: %s)", config.Action, strings.Join(actionNames, ", "))
	}
	config.Action = action

	// Validate host; full URLs are passed through to session discovery
	if config.Host == "" {
		return fmt.Errorf("host is required")
	}
	if !strings.Contains(config.Host, "://") {
		if err := validation.ValidateHostname(config.Host); err != nil {
			return fmt.Errorf("invalid host: %w", err)
		}
	}

	// Resolve and validate auth method
	config.AuthMethod = strings.ToLower(config.AuthMethod)
	if config.AuthMethod == "auto" {
		switch {
		case config.TokenURL != "":
			config.AuthMethod = "oauth2"
		case config.AccessToken != "":
			config.AuthMethod = "bearer"
		default:
			config.AuthMethod = "basic"
		}
	}
	switch config.AuthMethod {
	case "basic":
		if config.Action != "testconnect" && (config.Username == "" || config.Password == "") {
			return fmt.Errorf("username and password are required for basic authentication")
		}
	case "bearer":
		if config.Action != "testconnect" && config.AccessToken == "" {
			return fmt.Errorf("accesstoken is required for bearer authentication")
		}
	case "oauth2":
		if config.TokenURL == "" || config.ClientID == "" || config.ClientSecret == "" {
			return fmt.Errorf("tokenurl, clientid and clientsecret are required for oauth2 authentication")
		}
	default:
		return fmt.Errorf("invalid auth method: %s (valid: auto, basic, bearer, oauth2)", config.AuthMethod)
	}

	// Validate per-action parameters
	switch config.Action {
	case "get", "labels", "reply", "move", "markread", "flag", "delete", "attachments", "raw":
		if config.EmailID == "" {
			return fmt.Errorf("email is required for %s", config.Action)
		}
	case "thread":
		if config.ThreadID == "" {
			return fmt.Errorf("thread is required for thread")
		}
	case "send", "draft":
		if config.To == "" {
			return fmt.Errorf("to is required for %s", config.Action)
		}
	}
	if config.Action == "move" && config.Mailbox == "" {
		return fmt.Errorf("mailbox is required for move")
	}

	// Validate recipients for composing actions
	if config.Action == "send" || config.Action == "draft" || config.Action == "reply" {
		if err := validation.ValidateEmails(splitList(config.To), "to"); err != nil {
			return err
		}
		if err := validation.ValidateEmails(splitList(config.Cc), "cc"); err != nil {
			return err
		}
		if err := validation.ValidateEmails(splitList(config.Bcc), "bcc"); err != nil {
			return err
		}
	}

	// Validate file parameters
	if config.PFXPath != "" {
		if err := validation.ValidateFilePath(config.PFXPath, "pfxpath"); err != nil {
			return err
		}
	}
	if config.PollConfigPath != "" {
		if err := validation.ValidateFilePath(config.PollConfigPath, "pollconfig"); err != nil {
			return err
		}
	}

	// Validate rate limit
	if config.RateLimit < 0 {
		return fmt.Errorf("invalid ratelimit: %v (must be >= 0)", config.RateLimit)
	}

	// Validate log level
	config.LogLevel = strings.ToLower(config.LogLevel)
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", config.LogLevel)
	}

	return nil
}

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-idler/internal/web"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively generate a config.yaml file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(configFile); err == nil && !force {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists. Use --force to overwrite.\n", configFile)
			return nil
		}

		return writeConfig(cmd.InOrStdin(), cmd.OutOrStdout(), configFile)
	},
}

func init() {
	initCmd.Flags().String("output", "config.yaml", "Path of the config file to write")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

func writeConfig(in io.Reader, out io.Writer, configFile string) error {
	reader := bufio.NewReader(in)
	p := func(label, def string) string { return prompt(reader, out, label, def) }

	fmt.Fprintln(out, "Let's set up your config.yaml!")

	fmt.Fprintln(out, "\n--- IMAP ---")
	imapServer := p("IMAP server (e.g. imap.example.org)", "")
	imapPort := p("IMAP port", "143")
	imapSecurity := p("IMAP security (none/starttls/ssl)", "none")
	imapUser := p("IMAP username", "")
	imapPass := p("IMAP password", "")
	source := p("Source folder", "INBOX")
	destination := p("Destination folder for processed mail", "INBOX.done")
	waitTimeout := p("IDLE timeout in seconds", "60")

	fmt.Fprintln(out, "\n--- PROCESSOR ---")
	procType := p("Processor (command/forward)", "command")

	var processorSection, smtpSection string
	switch procType {
	case "forward":
		fmt.Fprintln(out, "\n--- SMTP ---")
		smtpServer := p("SMTP server (e.g. smtp.example.org)", "")
		smtpPort := p("SMTP port", "465")
		smtpSecurity := p("SMTP security (ssl/starttls)", "ssl")
		smtpUser := p("SMTP username", "")
		smtpPass := p("SMTP password", "")
		recipients := promptMulti(reader, out, "BCC recipient email(s) (comma-separated): ")

		processorSection = "  type: forward\n"
		smtpSection = fmt.Sprintf(`
smtp:
  server: %s
  port: %s
  security: %s
  username: %s
  password: %s

recipients:
%s
`, smtpServer, smtpPort, smtpSecurity, smtpUser, quote(smtpPass), yamlList("  - ", recipients))
	default:
		command := p("Command receiving each mail on stdin", "")
		processorSection = fmt.Sprintf("  type: command\n  command:\n%s\n", yamlList("    - ", strings.Fields(command)))
	}

	fmt.Fprintln(out, "\n--- FILTER ---")
	froms := promptMulti(reader, out, "Allowed sender email(s), empty for all (comma-separated): ")

	fmt.Fprintln(out, "\n--- WEB ---")
	webSection := "web:\n  enabled: false\n"
	if webPass := p("Password for the status page (empty to disable)", ""); webPass != "" {
		hash, err := web.HashPassword(webPass)
		if err != nil {
			return err
		}
		webSection = fmt.Sprintf("web:\n  enabled: true\n  bind: 127.0.0.1\n  port: \"8080\"\n  username: admin\n  password_hash: %s\n", quote(hash))
	}

	filterSection := ""
	if len(froms) > 0 {
		filterSection = fmt.Sprintf("\nfilter:\n  from:\n%s\n", yamlList("    - ", froms))
	}

	content := fmt.Sprintf(`imap:
  server: %s
  port: %s
  security: %s
  username: %s
  password: %s
  source: %s
  destination: %s
  wait_timeout: %s

processor:
%s%s%s
%s`, imapServer, imapPort, imapSecurity, imapUser, quote(imapPass), quote(source), quote(destination), waitTimeout,
		processorSection, smtpSection, filterSection, webSection)

	if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFile, err)
	}

	fmt.Fprintf(out, "\n✅ %s created successfully.\n", configFile)
	return nil
}

func prompt(r *bufio.Reader, w io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(w, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(w, "%s: ", label)
	}
	text, _ := r.ReadString('\n')
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	return text
}

func promptMulti(r *bufio.Reader, w io.Writer, label string) []string {
	raw := prompt(r, w, strings.TrimSuffix(label, ": "), "")
	parts := strings.Split(raw, ",")
	var cleaned []string
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func yamlList(prefix string, values []string) string {
	var lines []string
	for _, v := range values {
		lines = append(lines, fmt.Sprintf("%s%s", prefix, quote(v)))
	}
	return strings.Join(lines, "\n")
}

// quote renders s as a double-quoted YAML scalar.
func quote(s string) string {
	return fmt.Sprintf("%q", s)
}

package detection

// Installation instructions are static and shown verbatim to the user.

func claudeInstructions(goos string) string {
	switch goos {
	case "windows":
		return `Claude Code is not installed.

Install it with npm (Node.js 18+ required):
  npm install -g @anthropic-ai/claude-code

Then open a new terminal and run "claude" to sign in.`
	case "darwin":
		return `Claude Code is not installed.

Install it with the native installer:
  curl -fsSL https://claude.ai/install.sh | bash

or with npm (Node.js 18+ required):
  npm install -g @anthropic-ai/claude-code

Then run "claude" in a terminal to sign in.`
	default:
		return `Claude Code is not installed.

Install it with the native installer:
  curl -fsSL https://claude.ai/install.sh | bash

or with npm (Node.js 18+ required):
  npm install -g @anthropic-ai/claude-code

If "claude" is still not found, add ~/.local/bin to your PATH.`
	}
}

func ollamaInstructions(goos string) string {
	switch goos {
	case "windows":
		return `Ollama is not installed.

Download the installer from https://ollama.com/download/windows
and run OllamaSetup.exe. Ollama starts in the system tray.`
	case "darwin":
		return `Ollama is not installed.

Download the app from https://ollama.com/download/mac
or install with Homebrew:
  brew install ollama
  brew services start ollama`
	default:
		return `Ollama is not installed.

Install it with:
  curl -fsSL https://ollama.com/install.sh | sh

Start the server with "ollama serve" or "systemctl start ollama".`
	}
}

func geminiInstructions(goos string) string {
	switch goos {
	case "darwin":
		return `Gemini CLI is not installed.

Install it with npm (Node.js 20+ required):
  npm install -g @google/gemini-cli

or with Homebrew:
  brew install gemini-cli

Then run "gemini" to sign in with Google or set GEMINI_API_KEY.`
	default:
		return `Gemini CLI is not installed.

Install it with npm (Node.js 20+ required):
  npm install -g @google/gemini-cli

Then run "gemini" to sign in with Google or set GEMINI_API_KEY.`
	}
}

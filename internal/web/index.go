package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Focus Nudge</title>
    <script src="https://unpkg.com/htmx.org@1.9.10"></script>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        :root {
            --bg-primary: #f5f5f5;
            --bg-secondary: white;
            --text-primary: #333;
            --text-muted: #7f8c8d;
            --border-color: #eee;
            --accent-color: #3498db;
            --warning-color: #e67e22;
            --break-color: #c0392b;
            --good-color: #27ae60;
            --shadow: rgba(0,0,0,0.1);
        }

        [data-theme="dark"] {
            --bg-primary: #1a1a1a;
            --bg-secondary: #2d2d2d;
            --text-primary: #e0e0e0;
            --text-muted: #a0a0a0;
            --border-color: #404040;
            --accent-color: #5dade2;
            --shadow: rgba(0,0,0,0.3);
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: var(--bg-primary);
            padding: 20px;
            color: var(--text-primary);
        }

        .dashboard {
            display: flex;
            gap: 20px;
            flex-wrap: wrap;
        }

        .box {
            flex: 1;
            min-width: 300px;
            background: var(--bg-secondary);
            border-radius: 8px;
            box-shadow: 0 2px 4px var(--shadow);
            padding: 24px;
        }

        .timer {
            font-size: 3rem;
            font-variant-numeric: tabular-nums;
        }

        .timer.active { color: var(--good-color); }
        .timer.paused { color: var(--text-muted); }

        .state, .signals, .app-time, .loading {
            color: var(--text-muted);
        }

        .controls button, .nudge button {
            margin: 12px 8px 0 0;
            padding: 6px 14px;
            border: 2px solid var(--border-color);
            border-radius: 50px;
            background: var(--bg-secondary);
            color: var(--text-primary);
            cursor: pointer;
        }

        .nudge {
            padding: 12px;
            margin-bottom: 12px;
            border-left: 4px solid var(--accent-color);
            border-radius: 4px;
        }

        .nudge.warning { border-left-color: var(--warning-color); }
        .nudge.break { border-left-color: var(--break-color); }
        .nudge.encouragement { border-left-color: var(--good-color); }

        .nudge-title {
            font-weight: 600;
        }

        .history {
            margin-top: 20px;
            padding-top: 15px;
            border-top: 2px solid var(--border-color);
        }
    </style>
</head>
<body>
    <div class="dashboard">
        <div class="box">
            <div hx-get="/api/session" hx-trigger="load, every 1s" hx-swap="innerHTML">
                <div class="loading">Loading...</div>
            </div>
            <div class="controls">
                <button hx-post="/api/session/start" hx-swap="none">Start</button>
                <button hx-post="/api/session/pause" hx-swap="none">Pause</button>
                <button hx-post="/api/session/stop" hx-swap="none">Stop</button>
            </div>
        </div>

        <div class="box">
            <div hx-get="/api/nudges" hx-trigger="load, every 2s" hx-swap="innerHTML">
                <div class="loading">Loading...</div>
            </div>
        </div>
    </div>
    <script>
        const prefersDark = window.matchMedia('(prefers-color-scheme: dark)').matches;
        document.documentElement.setAttribute('data-theme', prefersDark ? 'dark' : 'light');
    </script>
</body>
</html>`

package pipeline

const scaffoldHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Generated App</title>
    <link rel="stylesheet" href="style.css">
</head>
<body>
    <div class="container">
        <h1>Generated App</h1>
        <p>This is a minimal scaffold generated as a fallback.</p>
        <div id="app"></div>
    </div>
    <script src="script.js"></script>
</body>
</html>
`

const scaffoldCSS = `body {
    font-family: Arial, sans-serif;
    background-color: #fafafa;
    margin: 0;
    padding: 24px;
}

.container {
    max-width: 720px;
    margin: 0 auto;
    background: #ffffff;
    padding: 24px;
    border-radius: 10px;
    box-shadow: 0 2px 10px rgba(0, 0, 0, 0.06);
}

h1 { color: #222; }
p { color: #555; }
`

const scaffoldJS = `document.addEventListener('DOMContentLoaded', function () {
    const appRoot = document.getElementById('app');
    const info = document.createElement('pre');
    info.textContent = 'Fallback scaffold is active. Refine the request and make sure the model returns a JSON object of files.';
    appRoot.appendChild(info);
});
`

// Scaffold returns the minimal HTML/CSS/JS trio used when CODE output is
// unusable. The result is identical on every call and safe to mutate.
func Scaffold() FileMap {
	return FileMap{
		"index.html": scaffoldHTML,
		"style.css":  scaffoldCSS,
		"script.js":  scaffoldJS,
	}
}

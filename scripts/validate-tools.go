//go:build ignore

// This script validates the tool registry against the live codebase.
//
// Usage:
//
//	go run scripts/validate-tools.go          # Validate and update the registered-tool count
//	go run scripts/validate-tools.go --check  # Check only, fail if updates needed
//
// The script scans internal/tools to:
//   - Count role meta-tools and directly registered tools
//   - Keep the GetToolCount literal in sync with registration
//   - Verify every tool builds its annotations through a shared helper
//   - Detect duplicate tool names
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

func main() {
	log.SetFlags(0)

	checkOnly := flag.Bool("check", false, "Check only, don't update file")
	flag.Parse()

	metrics, err := collectMetrics()
	if err != nil {
		log.Fatalf("Failed to collect metrics: %v", err)
	}

	var problems []string
	for _, typeName := range metrics.ToolTypesWithoutHelper {
		problems = append(problems, fmt.Sprintf("%s.Annotations() does not use an annotation helper", typeName))
	}
	for _, name := range metrics.DuplicateNames {
		problems = append(problems, fmt.Sprintf("tool name %q is registered more than once", name))
	}
	if len(problems) > 0 {
		for _, p := range problems {
			log.Printf("FAIL: %s", p)
		}
		os.Exit(1)
	}

	log.Printf("Tool types embedding BaseTool: %d", metrics.ToolTypeCount)
	log.Printf("Registered tools: %d role meta-tools + %d direct = %d",
		metrics.RoleToolCount, metrics.DirectToolCount, metrics.RegisteredCount)

	if metrics.DeclaredCount == metrics.RegisteredCount {
		log.Println("GetToolCount is up to date")
		return
	}

	if *checkOnly {
		log.Fatalf("GetToolCount returns %d but %d tools are registered. Run 'go run scripts/validate-tools.go' to update.",
			metrics.DeclaredCount, metrics.RegisteredCount)
	}

	if err := updateToolCount(metrics.RegisteredCount); err != nil {
		log.Fatalf("Failed to update registry: %v", err)
	}
	log.Printf("Updated GetToolCount: %d -> %d", metrics.DeclaredCount, metrics.RegisteredCount)
}

// Metrics collected from the codebase
type Metrics struct {
	ToolTypeCount          int
	RoleToolCount          int
	DirectToolCount        int
	RegisteredCount        int
	DeclaredCount          int
	DuplicateNames         []string
	ToolTypesWithoutHelper []string
}

var annotationHelpers = []string{"ReadOnlyAnnotations", "GatedAnnotations", "HealthAnnotations"}

func collectMetrics() (*Metrics, error) {
	metrics := &Metrics{}

	toolsDir := "internal/tools"

	// Parse all Go files in the tools directory
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, toolsDir, func(fi os.FileInfo) bool {
		return !strings.HasSuffix(fi.Name(), "_test.go")
	}, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tools directory: %w", err)
	}

	// Find tool implementations by locating types that embed *BaseTool
	toolTypes := make(map[string]bool)
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			ast.Inspect(file, func(n ast.Node) bool {
				ts, ok := n.(*ast.TypeSpec)
				if !ok {
					return true
				}
				st, ok := ts.Type.(*ast.StructType)
				if !ok {
					return true
				}
				for _, field := range st.Fields.List {
					if se, ok := field.Type.(*ast.StarExpr); ok {
						if ident, ok := se.X.(*ast.Ident); ok && ident.Name == "BaseTool" {
							toolTypes[ts.Name.Name] = true
						}
					}
				}
				return true
			})
		}
	}
	metrics.ToolTypeCount = len(toolTypes)

	// Method-body checks work on raw file content. Scanning text between a
	// method signature and the next func is simpler and more reliable than
	// AST-based detection here.
	files, _ := filepath.Glob(filepath.Join(toolsDir, "*.go"))
	seenNames := make(map[string]bool)
	for _, file := range files {
		if strings.HasSuffix(file, "_test.go") {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		contentStr := string(content)

		for typeName := range toolTypes {
			body, ok := methodBody(contentStr, typeName, "Annotations")
			if !ok {
				continue
			}
			usesHelper := false
			for _, helper := range annotationHelpers {
				if strings.Contains(body, helper) {
					usesHelper = true
					break
				}
			}
			if !usesHelper {
				metrics.ToolTypesWithoutHelper = append(metrics.ToolTypesWithoutHelper, typeName)
			}
		}

		// Literal tool names; role meta-tools derive theirs from the
		// role spec and are covered by the roleSpecs count below.
		nameRe := regexp.MustCompile(`func \(t \*\w+\) Name\(\) string \{\n\treturn "([^"]+)"`)
		for _, m := range nameRe.FindAllStringSubmatch(contentStr, -1) {
			if seenNames[m[1]] {
				metrics.DuplicateNames = append(metrics.DuplicateNames, m[1])
			}
			seenNames[m[1]] = true
		}
	}

	// Count role meta-tools from the roleSpecs table
	specsContent, err := os.ReadFile(filepath.Join(toolsDir, "gateway_tools.go"))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway_tools.go: %w", err)
	}
	roleRe := regexp.MustCompile(`role:\s+model\.Role\w+`)
	metrics.RoleToolCount = len(roleRe.FindAllString(string(specsContent), -1))

	// Count directly registered constructors inside GetAllTools
	registryContent, err := os.ReadFile(filepath.Join(toolsDir, "registry.go"))
	if err != nil {
		return nil, fmt.Errorf("failed to read registry.go: %w", err)
	}
	registryStr := string(registryContent)
	body, ok := methodBody(registryStr, "", "GetAllTools")
	if !ok {
		return nil, fmt.Errorf("GetAllTools not found in registry.go")
	}
	ctorRe := regexp.MustCompile(`New\w+Tool\(`)
	metrics.DirectToolCount = len(ctorRe.FindAllString(body, -1))
	metrics.RegisteredCount = metrics.RoleToolCount + metrics.DirectToolCount

	declaredRe := regexp.MustCompile(`return (\d+) // Update this when adding new tools`)
	m := declaredRe.FindStringSubmatch(registryStr)
	if m == nil {
		return nil, fmt.Errorf("GetToolCount literal not found in registry.go")
	}
	fmt.Sscanf(m[1], "%d", &metrics.DeclaredCount)

	return metrics, nil
}

// methodBody returns the text between a func signature and the next
// top-level func. An empty typeName matches a plain function.
func methodBody(content, typeName, funcName string) (string, bool) {
	var pattern string
	if typeName == "" {
		pattern = fmt.Sprintf(`func %s\(`, funcName)
	} else {
		pattern = fmt.Sprintf(`func \(t \*%s\) %s\(`, typeName, funcName)
	}
	re := regexp.MustCompile(pattern)
	loc := re.FindStringIndex(content)
	if loc == nil {
		return "", false
	}
	remaining := content[loc[1]:]
	endIdx := strings.Index(remaining, "\nfunc ")
	if endIdx == -1 {
		endIdx = len(remaining)
	}
	return remaining[:endIdx], true
}

func updateToolCount(count int) error {
	registryPath := filepath.Join("internal", "tools", "registry.go")
	content, err := os.ReadFile(registryPath)
	if err != nil {
		return err
	}

	re := regexp.MustCompile(`return \d+ // Update this when adding new tools`)
	updated := re.ReplaceAll(content, []byte(fmt.Sprintf("return %d // Update this when adding new tools", count)))

	return os.WriteFile(registryPath, updated, 0600)
}

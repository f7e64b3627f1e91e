package templates

import "time"

// SeedTemplates returns the fixed sample set the server starts with.
func SeedTemplates() []Template {
	return []Template{
		{
			ID:          "api-design-template",
			Name:        "API Design Guidelines",
			Description: "RESTful API design guideline template covering naming, status codes and versioning",
			Content: "# API Design Guidelines\n\n## Principles\n1. Use plural nouns for resources\n2. Use HTTP methods for operations\n3. Use status codes for outcomes\n\n" +
				"## Naming\n- Resources: lower snake case, plural\n- Versioning: /api/v1/resource\n- Query parameters: page, limit, sort, filter\n\n" +
				"## Status codes\n- 200: OK\n- 201: Created\n- 400: Bad request\n- 401: Unauthorized\n- 403: Forbidden\n- 404: Not found\n- 500: Server error",
			Category:  "backend",
			CreatedAt: ts("2024-01-15T10:30:00Z"),
			UpdatedAt: ts("2024-01-20T14:25:00Z"),
		},
		{
			ID:          "database-design-template",
			Name:        "Database Design Guidelines",
			Description: "Database schema design template covering naming, indexes and constraints",
			Content: "# Database Design Guidelines\n\n## Naming\n- Tables: lower snake case, plural\n- Columns: lower snake case\n- Indexes: idx_table_column\n- Foreign keys: fk_table_column\n\n" +
				"## Types\n- Primary key: BIGINT UNSIGNED AUTO_INCREMENT\n- Strings: VARCHAR(255)\n- Text: TEXT\n- Timestamps: TIMESTAMP\n- Booleans: TINYINT(1)\n\n" +
				"## Indexing\n- Every primary key is indexed\n- Every foreign key is indexed\n- Index frequently queried columns\n- Mind column order in composite indexes",
			Category:  "database",
			CreatedAt: ts("2024-01-10T09:15:00Z"),
			UpdatedAt: ts("2024-01-18T11:40:00Z"),
		},
		{
			ID:          "prd-template",
			Name:        "PRD Template",
			Description: "Product requirements document template with background, requirements and acceptance criteria",
			Content: "# PRD\n\n## 1. Background\nProject background and goals\n\n## 2. Requirements\nDetailed functional requirements\n\n" +
				"## 3. User stories\n- As a [role], I want [feature], so that [value]\n\n## 4. Acceptance criteria\n- [ ] Criterion 1\n- [ ] Criterion 2\n- [ ] Criterion 3\n\n" +
				"## 5. Non-functional requirements\n- Performance\n- Security\n- Compatibility\n\n## 6. Schedule\n- Start: YYYY-MM-DD\n- End: YYYY-MM-DD",
			Category:  "documentation",
			CreatedAt: ts("2024-01-05T14:20:00Z"),
			UpdatedAt: ts("2024-01-12T16:35:00Z"),
		},
		{
			ID:          "architecture-design-template",
			Name:        "System Architecture Design",
			Description: "System architecture document template with diagrams, component notes and deployment plan",
			Content: "# System Architecture\n\n## Diagram\n```plantuml\n@startuml\n!theme plain\n\ncomponent \"Frontend\" as FE\ncomponent \"API Gateway\" as Gateway\n" +
				"component \"User Service\" as UserService\ncomponent \"Order Service\" as OrderService\ndatabase \"MySQL\" as DB\n\n" +
				"FE -> Gateway: HTTP\nGateway -> UserService: authn\nGateway -> OrderService: orders\nUserService -> DB: storage\nOrderService -> DB: storage\n@enduml\n```\n\n" +
				"## Components\n1. Frontend: Vue 3 + TypeScript\n2. API gateway: Nginx + OpenResty\n3. User service: Spring Boot\n4. Order service: Spring Boot\n5. Database: MySQL 8.0\n\n" +
				"## Deployment\n- Development: Docker Compose\n- Testing: Kubernetes\n- Production: Kubernetes + Helm",
			Category:  "architecture",
			CreatedAt: ts("2024-01-08T11:45:00Z"),
			UpdatedAt: ts("2024-01-22T09:10:00Z"),
		},
		{
			ID:          "test-plan-template",
			Name:        "Test Plan Template",
			Description: "Software test plan template with scope, strategy, resources and schedule",
			Content: "# Test Plan\n\n## Scope\n- Functional\n- Performance\n- Security\n- Compatibility\n\n" +
				"## Strategy\n### Unit\n- Coverage: >= 80%\n- Frameworks: JUnit / pytest\n\n### Integration\n- API tests\n- Database integration\n\n### System\n- End to end\n- User scenarios\n\n" +
				"## Resources\n- Environment: test.example.com\n- Data: mock_data.sql\n- Tools: Postman, JMeter\n\n" +
				"## Schedule\n- Unit: weeks 1-2\n- Integration: week 3\n- System: week 4",
			Category:  "testing",
			CreatedAt: ts("2024-01-12T13:30:00Z"),
			UpdatedAt: ts("2024-01-25T15:45:00Z"),
		},
		{
			ID:          "deployment-guide-template",
			Name:        "Deployment Guide Template",
			Description: "System deployment guide template with prerequisites, configuration and rollout steps",
			Content: "# Deployment Guide\n\n## Requirements\n- OS: Ubuntu 20.04+\n- Memory: >= 8GB\n- Disk: >= 50GB\n- Network: public IP\n\n" +
				"## Dependencies\n```bash\n# Docker\ncurl -fsSL https://get.docker.com -o get-docker.sh\nsudo sh get-docker.sh\n```\n\n" +
				"## Configuration\n```yaml\ndatabase:\n  host: localhost\n  port: 3306\n  username: admin\n  password: secret\n  database: app_db\n```\n\n" +
				"## Steps\n1. Clone the repository\n2. Edit the configuration\n3. Build the Docker image\n4. Start the containers\n5. Verify the rollout",
			Category:  "deployment",
			CreatedAt: ts("2024-01-18T16:20:00Z"),
			UpdatedAt: ts("2024-01-28T10:15:00Z"),
		},
	}
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}
